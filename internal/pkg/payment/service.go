package payment

import (
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

// Service wires the payment components around one set of repositories.
type Service struct {
	Config     Config
	Registry   *gateway.Registry
	Ledger     *Ledger
	Activator  *Activator
	Commission *CommissionService
	Initiator  *Initiator
	Reconciler *Reconciler
}

// Options overrides the collaborators NewService would otherwise default.
type Options struct {
	Clock    Clock
	Observer Observer
	Gateways GatewayLookup
}

func NewService(repos *repository.Repositories, registry *gateway.Registry, cfg Config, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if registry == nil {
		registry = gateway.NewRegistry()
	}

	ledger := NewLedger(repos, opts.Clock)
	activator := NewActivator(repos, opts.Clock, opts.Observer)
	commission := NewCommissionService(repos, opts.Clock, cfg.CommissionRate)

	return &Service{
		Config:     cfg,
		Registry:   registry,
		Ledger:     ledger,
		Activator:  activator,
		Commission: commission,
		Initiator:  NewInitiator(repos, registry, opts.Gateways, activator, commission, cfg),
		Reconciler: NewReconciler(repos, registry, ledger, activator, commission, opts.Observer, cfg),
	}
}
