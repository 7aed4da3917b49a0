package component

import (
	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Dependencies are the shared collaborators components are built with.
type Dependencies struct {
	PublicKeys *PublicKeyRepository
	Encryptor  Encryptor
}

// InstantMethods are the payment methods DefaultRegistry builds an InstantDelegate for.
var InstantMethods = []string{model.MethodPix, model.MethodPayNow, model.MethodUPIQR, model.MethodIdeal, model.MethodTwint, model.MethodMBWay}

// Factory builds a component for a payment method.
type Factory func(params Params, deps Dependencies) (Delegate, error)

// StoredFactory builds a component for a stored payment method.
type StoredFactory func(params Params, storedPaymentMethodID string) (Delegate, error)

// Registry maps payment method types to component factories. Build it once at
// startup and pass it to whatever creates components.
type Registry struct {
	factories map[string]Factory
	stored    map[string]StoredFactory
}

func NewRegistry(factories map[string]Factory, stored map[string]StoredFactory) *Registry {
	r := &Registry{
		factories: make(map[string]Factory, len(factories)),
		stored:    make(map[string]StoredFactory, len(stored)),
	}
	for k, f := range factories {
		r.factories[k] = f
	}
	for k, f := range stored {
		r.stored[k] = f
	}
	return r
}

// DefaultRegistry supports ACH Direct Debit, BLIK and the instant methods.
func DefaultRegistry() *Registry {
	factories := map[string]Factory{
		model.MethodACH: func(params Params, deps Dependencies) (Delegate, error) {
			return NewACHDelegate(params, deps.PublicKeys, deps.Encryptor)
		},
		model.MethodBlik: func(params Params, _ Dependencies) (Delegate, error) {
			return NewBlikDelegate(params)
		},
	}
	for _, method := range InstantMethods {
		factories[method] = func(params Params, _ Dependencies) (Delegate, error) {
			return NewInstantDelegate(method, params)
		}
	}
	return NewRegistry(
		factories,
		map[string]StoredFactory{
			model.MethodBlik: func(params Params, id string) (Delegate, error) {
				return NewStoredBlikDelegate(params, id)
			},
		},
	)
}

// IsSupported reports whether paymentMethodType has a registered factory.
func (r *Registry) IsSupported(paymentMethodType string) bool {
	_, ok := r.factories[paymentMethodType]
	return ok
}

// Create builds the component for paymentMethodType.
func (r *Registry) Create(paymentMethodType string, params Params, deps Dependencies) (Delegate, error) {
	f, ok := r.factories[paymentMethodType]
	if !ok {
		return nil, apperr.New(apperr.ErrConfiguration, "create component", "unregistered payment method "+paymentMethodType)
	}
	return f(params, deps)
}

// CreateStored builds the component for a stored payment method.
func (r *Registry) CreateStored(paymentMethodType, storedPaymentMethodID string, params Params) (Delegate, error) {
	f, ok := r.stored[paymentMethodType]
	if !ok {
		return nil, apperr.New(apperr.ErrConfiguration, "create stored component", "unregistered stored payment method "+paymentMethodType)
	}
	return f(params, storedPaymentMethodID)
}
