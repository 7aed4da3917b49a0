package main

import (
	"errors"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/orchestrator"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/session"
)

func detailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "details",
		Short: "Resume a saved attempt and submit its action details",
		Long: `Restores the session and pending action saved for --attempt, resumes
status polling or hands --return-url to the pending redirect, and submits the
resulting details. Requires a durable state store (redis or mongo).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			attempt, _ := cmd.Flags().GetString("attempt")
			if attempt == "" {
				return errors.New("--attempt is required")
			}
			rawReturn, _ := cmd.Flags().GetString("return-url")
			var returnURL *url.URL
			if rawReturn != "" {
				u, err := url.Parse(rawReturn)
				if err != nil {
					return err
				}
				returnURL = u
			}

			env, closeEnv, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			interactor, err := session.Restore(env.ctx, env.client, env.handle, session.MerchantCalls{})
			if err != nil {
				return err
			}
			return runCheckout(env, interactor, nil, func(o *orchestrator.Orchestrator) {
				if returnURL != nil {
					o.HandleIntent(returnURL)
					return
				}
				o.RefreshStatus()
			})
		},
	}
	cmd.Flags().String("return-url", "", "Return URL the shopper landed on after a redirect")
	return cmd
}
