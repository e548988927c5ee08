package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func newTailCmd() *cobra.Command {
	var (
		tenantID  string
		eventType string
		queue     string
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print ledger events as they are published",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			rmq, err := messaging.New(&cfg.RabbitMQ, log)
			if err != nil {
				return fmt.Errorf("connect broker: %w", err)
			}
			defer rmq.Close()

			// A named queue is durable and keeps events published while tail is down
			var consumer *messaging.Consumer
			if queue != "" {
				consumer, err = messaging.NewConsumer(rmq, queue, log)
			} else {
				consumer, err = messaging.NewTransientConsumer(rmq, log)
			}
			if err != nil {
				return err
			}

			exchange := cfg.RabbitMQ.Exchange
			if exchange == "" {
				exchange = messaging.ExchangeLedgerEvents
			}
			routingKey := "#"
			if eventType != "" {
				routingKey = eventType
			}
			if err := consumer.Subscribe(exchange, routingKey); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			emit := func(_ context.Context, event *messaging.Event) error {
				if tenantID != "" && event.TenantID != tenantID {
					return nil
				}
				return enc.Encode(event)
			}
			if eventType != "" {
				consumer.RegisterHandler(eventType, emit)
			} else {
				consumer.RegisterFallback(emit)
			}

			if err := consumer.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "only print events of this tenant")
	cmd.Flags().StringVar(&eventType, "type", "", "only print events of this type, e.g. alert:created")
	cmd.Flags().StringVar(&queue, "queue", "", "consume from a durable named queue instead of a temporary one")
	return cmd
}
