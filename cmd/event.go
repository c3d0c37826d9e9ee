package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
	"github.com/frahmantamala/messaging-permissions/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test permission events through the notification pipeline`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test permission event",
	Long:  `Publish a test permission event to the event bus, delivering it to the configured webhook`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventData      string
	eventRecipient string
)

func publishTestEvent(eventType string) {
	known := false
	for _, t := range events.PermissionEventTypes {
		if t == eventType {
			known = true
		}
	}
	if !known {
		fmt.Fprintf(os.Stderr, "unknown event type %q, expected one of %v\n", eventType, events.PermissionEventTypes)
		os.Exit(1)
	}

	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)
	webhook := startNotificationDelivery(config.Notification, eventBus, log)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.NewPermissionEvent(events.PermissionEventInput{
		Type:         eventType,
		RecipientID:  eventRecipient,
		PermissionID: fmt.Sprintf("test-%d", time.Now().Unix()),
		RequesterID:  "cli",
		TargetID:     eventRecipient,
		Status:       string(permission.StatusPending),
		Message:      &eventData,
	})

	log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.EventID())

	if err := eventBus.PublishSync(context.Background(), testEvent); err != nil {
		log.Error("failed to publish event", "error", err)
	}

	if webhook != nil {
		// let the worker pool pick the job up before shutting it down
		time.Sleep(500 * time.Millisecond)
		webhook.Shutdown()
	}
	log.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event message")
	publishEventCmd.Flags().StringVar(&eventRecipient, "recipient", "test-user", "Recipient user id")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
