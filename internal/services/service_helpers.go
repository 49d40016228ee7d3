package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/clinic-service/internal/events"
)

// publishEvent is best effort; a broker failure never fails the operation that produced the event
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType events.EventType, data map[string]interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), events.NewEvent(eventType, data)); err != nil {
		logger.Warn("Failed to publish event", "type", eventType, "error", err)
	}
}
