package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
)

var hundred = decimal.NewFromInt(100)

// CommissionService pays referrers a share of the payments made by the
// businesses they referred.
type CommissionService struct {
	repos *repository.Repositories
	clock Clock
	// rate is a percentage.
	rate decimal.Decimal
}

func NewCommissionService(repos *repository.Repositories, clock Clock, rate decimal.Decimal) *CommissionService {
	return &CommissionService{repos: repos, clock: clock, rate: rate}
}

// CommissionFor returns round(amount * rate / 100, 2).
func CommissionFor(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// ProcessCustomerCommission credits the referrer of the paying business at
// most once per transaction. It is called after activation committed and
// its errors never undo the activation.
func (s *CommissionService) ProcessCustomerCommission(ctx context.Context, transactionID uint) error {
	repos := s.repos.WithContext(ctx)

	t, err := repos.Transaction.GetByID(transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}
	if !t.IsPaid() {
		return nil
	}

	referral, err := repos.Referral.GetByReferredBusinessID(t.BusinessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load referral: %w", err)
	}

	now := s.clock.Now()
	commission := CommissionFor(t.Amount, s.rate)
	// Wallet-paid transactions spend money that already earned commission
	// when the wallet was funded. They still count as the business paying.
	if t.PaymentMethod == models.GatewayWallet || !commission.IsPositive() {
		return qualifyReferral(repos, referral, now)
	}

	exists, err := repos.Referral.CommissionExistsForTransaction(t.ID)
	if err != nil {
		return fmt.Errorf("check commission: %w", err)
	}
	if exists {
		return nil
	}

	err = s.repos.InTransaction(ctx, func(tx *repository.Repositories) error {
		wallet, err := tx.Referral.GetOrCreateWalletForUpdate(referral.ReferrerUserID)
		if err != nil {
			return fmt.Errorf("lock referral wallet: %w", err)
		}
		// re-check under the wallet lock
		exists, err := tx.Referral.CommissionExistsForTransaction(t.ID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		before := wallet.Balance
		wallet.Balance = before.Add(commission)
		wallet.TotalEarned = wallet.TotalEarned.Add(commission)
		if err := tx.Referral.SaveWallet(wallet); err != nil {
			return fmt.Errorf("save referral wallet: %w", err)
		}

		txID := t.ID
		referralID := referral.ID
		if err := tx.Referral.AppendTransaction(&models.CustomerReferralTransaction{
			ReferralWalletID:   wallet.ID,
			CustomerReferralID: &referralID,
			TransactionID:      &txID,
			Type:               models.ReferralTxCommission,
			Amount:             commission,
			BalanceBefore:      before,
			BalanceAfter:       wallet.Balance,
			Description:        "Commission for " + t.Reference,
		}); err != nil {
			return fmt.Errorf("append commission: %w", err)
		}

		return qualifyReferral(tx, referral, now)
	})
	if err != nil {
		return err
	}

	log.Infof("[Commission] credited %s to referrer %d for transaction %s", commission.StringFixed(2), referral.ReferrerUserID, t.Reference)
	return nil
}

// qualifyReferral marks a pending referral qualified on the referred
// business's first successful payment.
func qualifyReferral(repos *repository.Repositories, referral *models.CustomerReferral, now time.Time) error {
	if referral.Status != models.ReferralStatusPending {
		return nil
	}
	referral.Status = models.ReferralStatusQualified
	referral.QualifiedAt = &now
	if err := repos.Referral.Save(referral); err != nil {
		return fmt.Errorf("qualify referral: %w", err)
	}
	return nil
}

// Withdraw debits the referrer's commission wallet. Payout to a bank account
// happens outside this service.
func (s *CommissionService) Withdraw(ctx context.Context, userID uint, amount decimal.Decimal) (*models.CustomerReferralTransaction, error) {
	if userID == 0 {
		return nil, errors.New("user is required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(2)

	var entry *models.CustomerReferralTransaction
	err := s.repos.InTransaction(ctx, func(tx *repository.Repositories) error {
		wallet, err := tx.Referral.GetOrCreateWalletForUpdate(userID)
		if err != nil {
			return fmt.Errorf("lock referral wallet: %w", err)
		}
		if wallet.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		before := wallet.Balance
		wallet.Balance = before.Sub(amount)
		wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
		if err := tx.Referral.SaveWallet(wallet); err != nil {
			return fmt.Errorf("save referral wallet: %w", err)
		}

		entry = &models.CustomerReferralTransaction{
			ReferralWalletID: wallet.ID,
			Type:             models.ReferralTxWithdrawal,
			Amount:           amount.Neg(),
			BalanceBefore:    before,
			BalanceAfter:     wallet.Balance,
			Description:      "Commission withdrawal",
		}
		return tx.Referral.AppendTransaction(entry)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Commission] user %d withdrew %s", userID, amount.StringFixed(2))
	return entry, nil
}

// Balance returns the referrer's commission wallet, or an empty one.
func (s *CommissionService) Balance(ctx context.Context, userID uint) (*models.ReferralWallet, error) {
	w, err := s.repos.WithContext(ctx).Referral.GetWalletByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ReferralWallet{UserID: userID}, nil
	}
	return w, err
}
