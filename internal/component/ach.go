package component

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

// Field keys passed to the Encryptor.
const (
	EncryptionKeyBankAccountNumber = "bankAccountNumber"
	EncryptionKeyBankLocationID    = "bankLocationId"
)

// ACHInputData is what the shopper types into an ACH Direct Debit form.
type ACHInputData struct {
	BankAccountNumber  string
	BankLocationID     string
	OwnerName          string
	Address            validation.AddressInput
	StorePaymentMethod bool
}

// ACHOutputData is the validated snapshot of ACHInputData.
type ACHOutputData struct {
	BankAccountNumber     model.FieldState[string]
	BankLocationID        model.FieldState[string]
	OwnerName             model.FieldState[string]
	Address               validation.AddressOutput
	StorePaymentMethod    bool
	ShowStorePaymentField bool
}

func (o ACHOutputData) IsValid() bool {
	return o.BankAccountNumber.IsValid() &&
		o.BankLocationID.IsValid() &&
		o.OwnerName.IsValid() &&
		o.Address.IsValid()
}

// ACHDelegate drives the ACH Direct Debit component. The component is not ready
// until the public key used to encrypt the bank details has been fetched.
type ACHDelegate struct {
	*base
	keys      *PublicKeyRepository
	encryptor Encryptor
	attemptID string
	output    *stream.State[ACHOutputData]

	mu        sync.Mutex
	input     ACHInputData
	publicKey string
}

func NewACHDelegate(params Params, keys *PublicKeyRepository, encryptor Encryptor) (*ACHDelegate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if keys == nil || encryptor == nil {
		return nil, apperr.New(apperr.ErrConfiguration, "ach component", "public key repository and encryptor are required")
	}
	d := &ACHDelegate{
		base:      newBase(model.MethodACH, params, model.ComponentState{}),
		keys:      keys,
		encryptor: encryptor,
		attemptID: uuid.NewString(),
	}
	out := d.createOutputData()
	d.output = stream.NewState(out)
	d.state.Set(d.createComponentState(out))
	return d, nil
}

// Output exposes the validated input stream.
func (d *ACHDelegate) Output() *stream.State[ACHOutputData] { return d.output }

// Initialize binds the delegate to s and starts fetching the public key.
func (d *ACHDelegate) Initialize(s *scope.Scope) {
	if !d.bind(s) {
		return
	}
	s.Launch(d.fetchPublicKey)
}

func (d *ACHDelegate) fetchPublicKey(ctx context.Context) {
	key, err := d.keys.Fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.fail(apperr.Wrap(apperr.ErrTransport, "ach component", "unable to fetch public key", err))
		return
	}
	slog.Debug("ach_public_key_ready")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.publicKey = key
	d.state.Set(d.createComponentState(d.output.Value()))
}

// UpdateInputData applies update to the input and republishes the output and
// component state. It may be called before Initialize.
func (d *ACHDelegate) UpdateInputData(update func(*ACHInputData)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	update(&d.input)
	out := d.createOutputData()
	d.output.Set(out)
	d.state.Set(d.createComponentState(out))
}

func (d *ACHDelegate) createOutputData() ACHOutputData {
	return ACHOutputData{
		BankAccountNumber:     validation.BankAccountNumber(d.input.BankAccountNumber),
		BankLocationID:        validation.BankLocationID(d.input.BankLocationID),
		OwnerName:             validation.OwnerName(d.input.OwnerName),
		Address:               validation.Address(d.input.Address, d.params.addressMode()),
		StorePaymentMethod:    d.input.StorePaymentMethod,
		ShowStorePaymentField: d.params.IsStorePaymentFieldVisible,
	}
}

func (d *ACHDelegate) createComponentState(out ACHOutputData) model.ComponentState {
	if !out.IsValid() || d.publicKey == "" {
		return model.ComponentState{
			Data:         model.PaymentComponentData{},
			IsInputValid: out.IsValid(),
			IsReady:      d.publicKey != "",
		}
	}

	accountNumber, err := d.encryptor.EncryptField(EncryptionKeyBankAccountNumber, out.BankAccountNumber.Value, d.publicKey)
	if err == nil {
		var locationID string
		locationID, err = d.encryptor.EncryptField(EncryptionKeyBankLocationID, out.BankLocationID.Value, d.publicKey)
		if err == nil {
			return d.validState(out, accountNumber, locationID)
		}
	}
	d.fail(apperr.Wrap(apperr.ErrEncryption, "ach component", "unable to encrypt bank details", err))
	return model.ComponentState{IsInputValid: false, IsReady: true}
}

func (d *ACHDelegate) validState(out ACHOutputData, accountNumber, locationID string) model.ComponentState {
	data := d.paymentData(&model.PaymentMethodDetails{
		Type:                       model.MethodACH,
		CheckoutAttemptID:          d.attemptID,
		EncryptedBankAccountNumber: accountNumber,
		EncryptedBankLocationID:    locationID,
		OwnerName:                  out.OwnerName.Value,
	})
	if out.ShowStorePaymentField {
		store := out.StorePaymentMethod
		data.StorePaymentMethod = &store
	}
	if out.Address.IsRequired() {
		data.BillingAddress = out.Address.ToModel()
	}
	return model.ComponentState{Data: data, IsInputValid: true, IsReady: true}
}
