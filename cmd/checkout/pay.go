package main

import (
	"github.com/spf13/cobra"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/component"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/validation"
)

func payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Submit a payment with one payment method",
	}
	cmd.PersistentFlags().Int64("amount", 1000, "Amount in minor units")
	cmd.PersistentFlags().String("currency", "USD", "ISO 4217 currency code")
	cmd.PersistentFlags().String("qr-out", "", "Write QR code actions to this PNG file")

	cmd.AddCommand(payBlikCmd())
	cmd.AddCommand(payACHCmd())
	cmd.AddCommand(payInstantCmd())
	return cmd
}

func payBlikCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blik",
		Short: "Pay with a 6 digit BLIK code or a stored BLIK alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			storedID, _ := cmd.Flags().GetString("stored-id")
			if (code == "") == (storedID == "") {
				return apperr.New(apperr.ErrConfiguration, "pay blik", "pass exactly one of --code and --stored-id")
			}
			return runPayment(cmd, func(env *environment) (component.Delegate, func(), error) {
				if storedID != "" {
					d, err := env.components.CreateStored(model.MethodBlik, storedID, env.params)
					if err != nil {
						return nil, nil, err
					}
					return d, d.OnSubmit, nil
				}
				d, err := create[*component.BlikDelegate](env, model.MethodBlik, env.params)
				if err != nil {
					return nil, nil, err
				}
				return d, func() {
					d.UpdateInputData(func(in *component.BlikInputData) { in.BlikCode = code })
					d.OnSubmit()
				}, nil
			})
		},
	}
	cmd.Flags().String("code", "", "BLIK code")
	cmd.Flags().String("stored-id", "", "Stored BLIK payment method id")
	return cmd
}

func payACHCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ach",
		Short: "Pay with ACH Direct Debit",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, _ := cmd.Flags().GetString("account")
			location, _ := cmd.Flags().GetString("location")
			owner, _ := cmd.Flags().GetString("owner")
			postalCode, _ := cmd.Flags().GetString("postal-code")
			store, _ := cmd.Flags().GetBool("store")

			return runPayment(cmd, func(env *environment) (component.Delegate, func(), error) {
				params := env.params
				params.IsStorePaymentFieldVisible = store
				if postalCode != "" {
					params.AddressMode = validation.AddressPostalCode
				}
				d, err := create[*component.ACHDelegate](env, model.MethodACH, params)
				if err != nil {
					return nil, nil, err
				}
				return d, func() {
					d.UpdateInputData(func(in *component.ACHInputData) {
						in.BankAccountNumber = account
						in.BankLocationID = location
						in.OwnerName = owner
						in.Address.PostalCode = postalCode
						in.StorePaymentMethod = store
					})
					waitReady(env.ctx, d)
					d.OnSubmit()
				}, nil
			})
		},
	}
	cmd.Flags().String("account", "", "Bank account number")
	cmd.Flags().String("location", "", "ABA routing number")
	cmd.Flags().String("owner", "", "Account owner name")
	cmd.Flags().String("postal-code", "", "Billing postal code; enables the postal code address form")
	cmd.Flags().Bool("store", false, "Store the payment method for later use")
	for _, f := range []string{"account", "location", "owner"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func payInstantCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "instant <method>",
		Short:     "Pay with a method that takes no shopper input",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: component.InstantMethods,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayment(cmd, func(env *environment) (component.Delegate, func(), error) {
				d, err := env.components.Create(args[0], env.params, env.deps)
				if err != nil {
					return nil, nil, err
				}
				return d, d.OnSubmit, nil
			})
		},
	}
}

// create builds the component registered for method and checks its concrete type.
func create[T component.Delegate](env *environment, method string, params component.Params) (T, error) {
	var zero T
	d, err := env.components.Create(method, params, env.deps)
	if err != nil {
		return zero, err
	}
	typed, ok := d.(T)
	if !ok {
		return zero, apperr.New(apperr.ErrConfiguration, "create component", "unexpected component registered for "+method)
	}
	return typed, nil
}

// amountFlag reads the pay command's amount flags.
func amountFlag(cmd *cobra.Command) model.Amount {
	value, _ := cmd.Flags().GetInt64("amount")
	currency, _ := cmd.Flags().GetString("currency")
	return model.Amount{Currency: currency, Value: value}
}
