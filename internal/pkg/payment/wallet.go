package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
)

// The wallet helpers must run inside repos.InTransaction: they read the
// wallet row with a lock and write the balance and its audit row together.

// debitWallet takes amount from the business's wallet. It fails with
// ErrInsufficientFunds before writing anything when the balance is short.
func debitWallet(tx *repository.Repositories, businessID uint, amount decimal.Decimal, transactionID uint, description string) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	w, err := tx.Wallet.GetByBusinessIDForUpdate(businessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if w.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	before := w.Balance
	w.Balance = before.Sub(amount)
	if err := tx.Wallet.Save(w); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}
	if err := tx.Wallet.AppendTransaction(&models.WalletTransaction{
		WalletID:      w.ID,
		TransactionID: &transactionID,
		Type:          models.WalletTxPayment,
		Amount:        amount.Neg(),
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Description:   description,
	}); err != nil {
		return nil, fmt.Errorf("append wallet audit: %w", err)
	}
	return w, nil
}

// creditWallet deposits amount into an already locked wallet.
func creditWallet(tx *repository.Repositories, w *models.Wallet, amount decimal.Decimal, transactionID uint, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	before := w.Balance
	w.Balance = before.Add(amount)
	if err := tx.Wallet.Save(w); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return tx.Wallet.AppendTransaction(&models.WalletTransaction{
		WalletID:      w.ID,
		TransactionID: &transactionID,
		Type:          models.WalletTxDeposit,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Description:   description,
	})
}

// addWalletCredits adds count credits of kind. The cash balance is unchanged.
func addWalletCredits(tx *repository.Repositories, w *models.Wallet, kind models.CreditKind, count int, transactionID uint) error {
	if count <= 0 {
		return ErrInvalidAmount
	}
	before := w.Credits(kind)
	w.AddCredits(kind, count)
	if err := tx.Wallet.Save(w); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return tx.Wallet.AppendTransaction(&models.WalletTransaction{
		WalletID:      w.ID,
		TransactionID: &transactionID,
		Type:          models.WalletTxCreditPurchase,
		Amount:        decimal.NewFromInt(int64(count)),
		CreditKind:    kind,
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance,
		CreditsBefore: before,
		CreditsAfter:  w.Credits(kind),
		Description:   fmt.Sprintf("Purchased %d %s", count, kind),
	})
}
