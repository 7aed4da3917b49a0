package component

import (
	"sync"

	"github.com/google/uuid"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

type BlikInputData struct {
	BlikCode string
}

type BlikOutputData struct {
	BlikCode model.FieldState[string]
}

func (o BlikOutputData) IsValid() bool { return o.BlikCode.IsValid() }

// BlikDelegate collects a 6 digit BLIK code. It has no asynchronous prerequisite.
type BlikDelegate struct {
	*base
	attemptID string
	output    *stream.State[BlikOutputData]

	mu    sync.Mutex
	input BlikInputData
}

func NewBlikDelegate(params Params) (*BlikDelegate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	d := &BlikDelegate{
		base:      newBase(model.MethodBlik, params, model.ComponentState{}),
		attemptID: uuid.NewString(),
	}
	out := d.createOutputData()
	d.output = stream.NewState(out)
	d.state.Set(d.createComponentState(out))
	return d, nil
}

func (d *BlikDelegate) Output() *stream.State[BlikOutputData] { return d.output }

func (d *BlikDelegate) Initialize(s *scope.Scope) {
	d.bind(s)
}

// UpdateInputData applies update and republishes the output and component state.
func (d *BlikDelegate) UpdateInputData(update func(*BlikInputData)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	update(&d.input)
	out := d.createOutputData()
	d.output.Set(out)
	d.state.Set(d.createComponentState(out))
}

func (d *BlikDelegate) createOutputData() BlikOutputData {
	return BlikOutputData{BlikCode: validation.BlikCode(d.input.BlikCode)}
}

func (d *BlikDelegate) createComponentState(out BlikOutputData) model.ComponentState {
	if !out.IsValid() {
		return model.ComponentState{IsInputValid: false, IsReady: true}
	}
	data := d.paymentData(&model.PaymentMethodDetails{
		Type:              model.MethodBlik,
		CheckoutAttemptID: d.attemptID,
		BlikCode:          out.BlikCode.Value,
	})
	return model.ComponentState{Data: data, IsInputValid: true, IsReady: true}
}

// StoredBlikDelegate pays with a previously stored BLIK alias. Its state is always
// valid.
type StoredBlikDelegate struct {
	*base
}

func NewStoredBlikDelegate(params Params, storedPaymentMethodID string) (*StoredBlikDelegate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if storedPaymentMethodID == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "stored blik component", "stored payment method id is required")
	}
	d := &StoredBlikDelegate{base: newBase(model.MethodBlik, params, model.ComponentState{})}
	d.state.Set(model.ComponentState{
		Data: d.paymentData(&model.PaymentMethodDetails{
			Type:                  model.MethodBlik,
			CheckoutAttemptID:     uuid.NewString(),
			StoredPaymentMethodID: storedPaymentMethodID,
		}),
		IsInputValid: true,
		IsReady:      true,
	})
	return d, nil
}

func (d *StoredBlikDelegate) Initialize(s *scope.Scope) {
	d.bind(s)
}
