package processor

import (
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// NewBankRails creates the direct debit provider: 85% authorised, 10% refused, 5% errors.
func NewBankRails() *MockProcessor {
	return NewMockProcessor(MockConfig{
		ProcessorName: "BankRails",
		Methods:       []string{model.MethodACH},
		DefaultOutcomes: OutcomeDistribution{
			AuthoriseRate: 0.85,
			RefuseRate:    0.10,
		},
		MinLatency: 20 * time.Millisecond,
		MaxLatency: 80 * time.Millisecond,
	})
}

// NewWalletHub creates the app-confirmation provider: BLIK and MB WAY mostly wait for the
// shopper's banking app, 90% of confirmations authorise.
func NewWalletHub() *MockProcessor {
	return NewMockProcessor(MockConfig{
		ProcessorName: "WalletHub",
		Methods:       []string{model.MethodBlik, model.MethodMBWay},
		DefaultOutcomes: OutcomeDistribution{
			AuthoriseRate: 0.10,
			RefuseRate:    0.05,
			AwaitRate:     0.85,
		},
		SettleOutcomes: OutcomeDistribution{
			AuthoriseRate: 0.90,
			RefuseRate:    0.10,
		},
		MinLatency: 10 * time.Millisecond,
		MaxLatency: 50 * time.Millisecond,
	})
}

// NewQRHub creates the QR provider: every payment presents a QR code.
func NewQRHub() *MockProcessor {
	return NewMockProcessor(MockConfig{
		ProcessorName:   "QRHub",
		Methods:         []string{model.MethodPix, model.MethodPayNow, model.MethodUPIQR},
		DefaultOutcomes: OutcomeDistribution{QRCodeRate: 1.0},
		MinLatency:      10 * time.Millisecond,
		MaxLatency:      40 * time.Millisecond,
	})
}

// NewRedirectHub creates the bank redirect provider: iDEAL and TWINT always redirect.
func NewRedirectHub() *MockProcessor {
	return NewMockProcessor(MockConfig{
		ProcessorName:   "RedirectHub",
		Methods:         []string{model.MethodIdeal, model.MethodTwint},
		DefaultOutcomes: OutcomeDistribution{RedirectRate: 1.0},
		SettleOutcomes: OutcomeDistribution{
			AuthoriseRate: 0.95,
			RefuseRate:    0.05,
		},
		MinLatency: 10 * time.Millisecond,
		MaxLatency: 60 * time.Millisecond,
	})
}

// Defaults returns the sandbox's provider set.
func Defaults() []Processor {
	return []Processor{NewBankRails(), NewWalletHub(), NewQRHub(), NewRedirectHub()}
}
