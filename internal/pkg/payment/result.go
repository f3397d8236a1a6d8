package payment

// Result is the outcome of Initialize. It is one of Redirect,
// BankTransferInstructions, Success or Failed.
type Result interface {
	Kind() string
	isResult()
}

// Redirect sends the payer to the gateway's hosted checkout.
type Redirect struct {
	URL       string
	Reference string
}

// BankTransferInstructions tells the payer how to pay offline.
type BankTransferInstructions struct {
	Text      string
	Reference string
}

// Success means the payment completed synchronously.
type Success struct {
	Message   string
	Reference string
}

// Failed carries a short user-safe message. Reference is empty when no
// transaction was created.
type Failed struct {
	Message   string
	Reference string
}

func (Redirect) Kind() string                 { return "redirect" }
func (BankTransferInstructions) Kind() string { return "bank_transfer" }
func (Success) Kind() string                  { return "success" }
func (Failed) Kind() string                   { return "failed" }

func (Redirect) isResult()                 {}
func (BankTransferInstructions) isResult() {}
func (Success) isResult()                  {}
func (Failed) isResult()                   {}
