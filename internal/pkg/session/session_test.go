package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/internal/pkg/cache"
)

func TestNewSessionStoreWithoutRedisFallsBackToMemory(t *testing.T) {
	prev := cache.GetClient()
	cache.SetClient(nil)
	t.Cleanup(func() { cache.SetClient(prev) })

	store := NewSessionStore()
	require.NotNil(t, store)
	assert.Same(t, store, GetSessionStore())
}
