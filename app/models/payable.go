package models

import "fmt"

// PayableKind identifies which entity a Transaction pays for.
type PayableKind string

const (
	PayableSubscription PayableKind = "subscription"
	PayableAdCampaign   PayableKind = "ad_campaign"
	PayableWallet       PayableKind = "wallet"
)

// Payable is the closed set of things a Transaction can fund. Only the three
// types below implement it; switches over Payable are expected to be exhaustive.
type Payable interface {
	Kind() PayableKind
	PayableID() uint
	isPayable()
}

// SubscriptionPayable references a Subscription row.
type SubscriptionPayable struct{ ID uint }

// AdCampaignPayable references an AdCampaign row.
type AdCampaignPayable struct{ ID uint }

// WalletPayable references a Wallet row.
type WalletPayable struct{ ID uint }

func (p SubscriptionPayable) Kind() PayableKind { return PayableSubscription }
func (p SubscriptionPayable) PayableID() uint   { return p.ID }
func (SubscriptionPayable) isPayable()          {}

func (p AdCampaignPayable) Kind() PayableKind { return PayableAdCampaign }
func (p AdCampaignPayable) PayableID() uint   { return p.ID }
func (AdCampaignPayable) isPayable()          {}

func (p WalletPayable) Kind() PayableKind { return PayableWallet }
func (p WalletPayable) PayableID() uint   { return p.ID }
func (WalletPayable) isPayable()          {}

// NewPayable builds the typed payable for a stored (kind, id) pair.
func NewPayable(kind PayableKind, id uint) (Payable, error) {
	if id == 0 {
		return nil, fmt.Errorf("payable id is required")
	}
	switch kind {
	case PayableSubscription:
		return SubscriptionPayable{ID: id}, nil
	case PayableAdCampaign:
		return AdCampaignPayable{ID: id}, nil
	case PayableWallet:
		return WalletPayable{ID: id}, nil
	default:
		return nil, fmt.Errorf("unsupported payable type %q", kind)
	}
}
