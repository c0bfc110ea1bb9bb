package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"payment-reconciler/internal/application"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/usecase"
)

func orderCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage payment records",
	}
	cmd.AddCommand(orderCreateCmd(opts))
	return cmd
}

func orderCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		o     usecase.NewOrder
		email string
		name  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a pending payment (and its user) for local testing",
		Long: `Create the pending record checkout would normally write, so webhooks and
sweeps can be exercised against a development database.

Example:
  reconcilerctl order create --provider-payment-id tr_test_1 --user u1 \
    --email ana@example.com --product course-1 --amount 4900 --currency EUR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			return opts.withContainer(cmd.Context(), func(c *application.Container) error {
				if err := c.Users.Upsert(cmd.Context(), repository.NoTX, o.UserID, email, name); err != nil {
					return err
				}
				o.Billing = model.BillingDetails{Name: name, Email: email}
				p, err := c.Payments.RegisterPending(cmd.Context(), o)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.ProviderPaymentID, "provider-payment-id", "", "provider payment id")
	f.StringVar(&o.Provider, "provider", "generic", "provider name")
	f.StringVar(&o.UserID, "user", "", "user id")
	f.StringVar(&o.ProductID, "product", "", "product id")
	f.Int64Var(&o.Amount, "amount", 0, "amount in minor units")
	f.StringVar(&o.Currency, "currency", "EUR", "ISO currency code")
	f.StringVar(&email, "email", "", "user email")
	f.StringVar(&name, "name", "", "user display name")
	return cmd
}
