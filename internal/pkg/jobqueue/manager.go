package jobqueue

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/localbiz/bizhub/internal/pkg/cache"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

const defaultWorkerCount = 5

// Manager owns the process-wide queue so the HTTP layer and main share one
// set of workers.
type Manager struct {
	queue *Queue

	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager builds the manager on first use. Call cache.SetupCache before it;
// without a Redis client the manager never starts.
func GetManager() *Manager {
	managerOnce.Do(func() {
		workers := env.GetInt("JOBQUEUE_WORKERS", defaultWorkerCount)
		globalManager = &Manager{queue: NewQueue(cache.GetClient(), workers)}
	})
	return globalManager
}

func (m *Manager) GetQueue() *Queue {
	return m.queue
}

func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.running:
		return
	case m.queue.client == nil:
		log.Warn("[JobQueue] No Redis client, payment jobs disabled")
		return
	}
	m.queue.Start()
	m.running = true
}

// Stop waits for running jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.queue.Stop()
	m.running = false
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
