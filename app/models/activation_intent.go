package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntentKind is the persisted discriminator of an ActivationIntent.
type IntentKind string

const (
	IntentNewSubscription        IntentKind = "new_subscription"
	IntentRenewSubscription      IntentKind = "renew_subscription"
	IntentActivateCampaign       IntentKind = "activate_campaign"
	IntentExtendCampaignDuration IntentKind = "extend_campaign_duration"
	IntentExtendCampaignBudget   IntentKind = "extend_campaign_budget"
	IntentFundWallet             IntentKind = "fund_wallet"
	IntentPurchaseCredits        IntentKind = "purchase_credits"
)

// CreditKind selects which wallet credit counter a purchase fills.
type CreditKind string

const (
	CreditKindAd    CreditKind = "ad_credits"
	CreditKindQuote CreditKind = "quote_credits"
)

// TransactionMetadata is the JSON shape stored next to a Transaction. Only the
// fields relevant to the transaction's intent are set.
type TransactionMetadata struct {
	ExtensionDays   int              `json:"extension_days,omitempty"`
	ExtensionAmount *decimal.Decimal `json:"extension_amount,omitempty"`
	CreditKind      CreditKind       `json:"credit_kind,omitempty"`
	Credits         int              `json:"credits,omitempty"`
	PlanID          uint             `json:"plan_id,omitempty"`
}

// ActivationIntent says what a paid Transaction should do to its payable.
type ActivationIntent interface {
	Kind() IntentKind
	Metadata() TransactionMetadata
	isIntent()
}

type NewSubscription struct{ PlanID uint }
type RenewSubscription struct{ PlanID uint }
type ActivateCampaign struct{}
type ExtendCampaignDuration struct{ Days int }

// ExtendCampaignBudget adds Amount to the campaign budget. A zero Amount means
// the transaction amount.
type ExtendCampaignBudget struct{ Amount decimal.Decimal }
type FundWallet struct{}
type PurchaseCredits struct {
	Credit CreditKind
	Count  int
}

func (i NewSubscription) Kind() IntentKind { return IntentNewSubscription }
func (i NewSubscription) Metadata() TransactionMetadata {
	return TransactionMetadata{PlanID: i.PlanID}
}
func (NewSubscription) isIntent() {}

func (i RenewSubscription) Kind() IntentKind { return IntentRenewSubscription }
func (i RenewSubscription) Metadata() TransactionMetadata {
	return TransactionMetadata{PlanID: i.PlanID}
}
func (RenewSubscription) isIntent() {}

func (ActivateCampaign) Kind() IntentKind              { return IntentActivateCampaign }
func (ActivateCampaign) Metadata() TransactionMetadata { return TransactionMetadata{} }
func (ActivateCampaign) isIntent()                     {}

func (i ExtendCampaignDuration) Kind() IntentKind { return IntentExtendCampaignDuration }
func (i ExtendCampaignDuration) Metadata() TransactionMetadata {
	return TransactionMetadata{ExtensionDays: i.Days}
}
func (ExtendCampaignDuration) isIntent() {}

func (i ExtendCampaignBudget) Kind() IntentKind { return IntentExtendCampaignBudget }
func (i ExtendCampaignBudget) Metadata() TransactionMetadata {
	if i.Amount.IsZero() {
		return TransactionMetadata{}
	}
	amt := i.Amount
	return TransactionMetadata{ExtensionAmount: &amt}
}
func (ExtendCampaignBudget) isIntent() {}

func (FundWallet) Kind() IntentKind              { return IntentFundWallet }
func (FundWallet) Metadata() TransactionMetadata { return TransactionMetadata{} }
func (FundWallet) isIntent()                     {}

func (i PurchaseCredits) Kind() IntentKind { return IntentPurchaseCredits }
func (i PurchaseCredits) Metadata() TransactionMetadata {
	return TransactionMetadata{CreditKind: i.Credit, Credits: i.Count}
}
func (PurchaseCredits) isIntent() {}

// NewActivationIntent rebuilds an intent from its stored kind and metadata.
func NewActivationIntent(kind IntentKind, meta TransactionMetadata) (ActivationIntent, error) {
	switch kind {
	case IntentNewSubscription:
		return NewSubscription{PlanID: meta.PlanID}, nil
	case IntentRenewSubscription:
		return RenewSubscription{PlanID: meta.PlanID}, nil
	case IntentActivateCampaign:
		return ActivateCampaign{}, nil
	case IntentExtendCampaignDuration:
		if meta.ExtensionDays <= 0 {
			return nil, fmt.Errorf("extension_days must be positive")
		}
		return ExtendCampaignDuration{Days: meta.ExtensionDays}, nil
	case IntentExtendCampaignBudget:
		if meta.ExtensionAmount != nil {
			if meta.ExtensionAmount.IsNegative() {
				return nil, fmt.Errorf("extension_amount must not be negative")
			}
			return ExtendCampaignBudget{Amount: *meta.ExtensionAmount}, nil
		}
		return ExtendCampaignBudget{}, nil
	case IntentFundWallet:
		return FundWallet{}, nil
	case IntentPurchaseCredits:
		credit := meta.CreditKind
		if credit == "" {
			credit = CreditKindAd
		}
		if credit != CreditKindAd && credit != CreditKindQuote {
			return nil, fmt.Errorf("unsupported credit kind %q", meta.CreditKind)
		}
		return PurchaseCredits{Credit: credit, Count: meta.Credits}, nil
	default:
		return nil, fmt.Errorf("unsupported activation intent %q", kind)
	}
}

// IntentAppliesTo reports whether an intent is meaningful for the given payable kind.
func IntentAppliesTo(intent ActivationIntent, kind PayableKind) bool {
	switch intent.(type) {
	case NewSubscription, RenewSubscription:
		return kind == PayableSubscription
	case ActivateCampaign, ExtendCampaignDuration, ExtendCampaignBudget:
		return kind == PayableAdCampaign
	case FundWallet, PurchaseCredits:
		return kind == PayableWallet
	default:
		return false
	}
}

// DefaultIntentFor is the intent used when a caller does not specify one.
func DefaultIntentFor(kind PayableKind) ActivationIntent {
	switch kind {
	case PayableSubscription:
		return NewSubscription{}
	case PayableAdCampaign:
		return ActivateCampaign{}
	default:
		return FundWallet{}
	}
}
