package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"payment-reconciler/internal/application"
	"payment-reconciler/internal/domain/model"
)

func reconcileCmd(opts *rootOptions) *cobra.Command {
	var (
		providerPaymentID string
		status            string
		provider          string
		detailsFile       string
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Apply a provider status to a payment by hand",
		Long: `Feed one event through the same reconciliation path as a webhook. Useful when
a provider delivery was lost and the dashboard shows the real status.

Examples:
  reconcilerctl reconcile --provider-payment-id tr_WDqYK6vllg --status paid
  reconcilerctl reconcile --provider-payment-id pi_123 --status failed --details details.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, err := manualEvent(providerPaymentID, status, provider, detailsFile)
			if err != nil {
				return err
			}

			return opts.withContainer(cmd.Context(), func(c *application.Container) error {
				res, err := c.Reconciler.Reconcile(cmd.Context(), ev)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"transitioned": res.Transitioned,
					"status":       res.NewStatus,
					"record_id":    res.RecordID,
				})
			})
		},
	}
	cmd.Flags().StringVar(&providerPaymentID, "provider-payment-id", "", "provider payment id the record is bound to")
	cmd.Flags().StringVar(&status, "status", "", "reported status")
	cmd.Flags().StringVar(&provider, "provider", "manual", "provider label recorded with the event")
	cmd.Flags().StringVar(&detailsFile, "details", "", "path to a JSON file attached as provider details")
	return cmd
}

// manualEvent builds an operator-issued event; it is audited with source admin.
func manualEvent(providerPaymentID, status, provider, detailsFile string) (model.PaymentEvent, error) {
	if strings.TrimSpace(providerPaymentID) == "" {
		return model.PaymentEvent{}, errors.New("--provider-payment-id is required")
	}
	ev := model.PaymentEvent{
		ProviderPaymentID: providerPaymentID,
		Status:            model.ParseReportedStatus(status),
		Provider:          provider,
		ReceivedAt:        time.Now().UTC(),
		Source:            model.AuditSourceAdmin,
	}
	if ev.Status.IsUnknown() {
		return model.PaymentEvent{}, errors.New("--status must be one of paid, failed, canceled, expired, pending, open, authorized")
	}
	if detailsFile != "" {
		b, err := os.ReadFile(detailsFile)
		if err != nil {
			return model.PaymentEvent{}, err
		}
		if !json.Valid(b) {
			return model.PaymentEvent{}, errors.New("--details must contain JSON")
		}
		ev.Details = b
	}
	return ev, nil
}
