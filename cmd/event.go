package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/safepark/platform-core/internal/core/events"
	"github.com/safepark/platform-core/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the lifecycle events the server publishes and dry-run their subscribers.`,
}

var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List lifecycle event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range lifecycleEventTypes {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample lifecycle event through the logging subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := sampleEvent(args[0])
		if err != nil {
			return err
		}
		lg := logger.LoggerWrapper()
		bus := events.NewEventBus(lg)
		subscribeEventLogging(bus, lg)
		return bus.PublishSync(context.Background(), event)
	},
}

var (
	eventTenantCode string
	eventOutcome    string
)

var lifecycleEventTypes = []string{
	events.EventTypePlatformInstalled,
	events.EventTypeTenantProvisioned,
	events.EventTypeLoginAttempted,
}

// subscribeEventLogging logs every lifecycle event at info level.
func subscribeEventLogging(bus *events.EventBus, lg *slog.Logger) {
	for _, t := range lifecycleEventTypes {
		bus.Subscribe(t, func(ctx context.Context, event events.Event) error {
			lg.InfoContext(ctx, "lifecycle event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}
}

func sampleEvent(eventType string) (events.Event, error) {
	switch eventType {
	case events.EventTypePlatformInstalled:
		return events.NewPlatformInstalledEvent(uuid.NewString(), uuid.NewString(), uuid.NewString()), nil
	case events.EventTypeTenantProvisioned:
		return events.NewTenantProvisionedEvent(uuid.NewString(), eventTenantCode, 1, uuid.NewString(), []string{"super_admin"}), nil
	case events.EventTypeLoginAttempted:
		return events.NewLoginAttemptedEvent(eventTenantCode, eventOutcome), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func init() {
	publishEventCmd.Flags().StringVar(&eventTenantCode, "tenant-code", "sample", "tenant code carried by the sample event")
	publishEventCmd.Flags().StringVar(&eventOutcome, "outcome", "success", "login outcome for auth.login events")

	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
