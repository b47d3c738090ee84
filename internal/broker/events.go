package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher publishes request lifecycle events
type Publisher interface {
	PublishSolicitudCreada(ctx context.Context, event *models.SolicitudCreadaEvent) error
	PublishSolicitudActualizada(ctx context.Context, event *models.SolicitudActualizadaEvent) error
	PublishStockBajo(ctx context.Context, event *models.StockBajoEvent) error
}

// EventWriter writes one keyed event; *Producer implements it
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSolicitudCreada publishes SolicitudCreada event
func (ep *EventPublisher) PublishSolicitudCreada(ctx context.Context, event *models.SolicitudCreadaEvent) error {
	return ep.producer.PublishEvent(ctx, solicitudKey(event.SolicitudID), event)
}

// PublishSolicitudActualizada publishes SolicitudActualizada event
func (ep *EventPublisher) PublishSolicitudActualizada(ctx context.Context, event *models.SolicitudActualizadaEvent) error {
	return ep.producer.PublishEvent(ctx, solicitudKey(event.SolicitudID), event)
}

// PublishStockBajo publishes StockBajo event
func (ep *EventPublisher) PublishStockBajo(ctx context.Context, event *models.StockBajoEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("producto-%d", event.ProductoID), event)
}

func solicitudKey(id int64) string {
	return fmt.Sprintf("solicitud-%d", id)
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishSolicitudCreada(context.Context, *models.SolicitudCreadaEvent) error {
	return nil
}

func (NopPublisher) PublishSolicitudActualizada(context.Context, *models.SolicitudActualizadaEvent) error {
	return nil
}

func (NopPublisher) PublishStockBajo(context.Context, *models.StockBajoEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onStockBajo            func(context.Context, *models.StockBajoEvent) error
	onSolicitudActualizada func(context.Context, *models.SolicitudActualizadaEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStockBajo registers a handler for StockBajo events
func (eh *EventHandler) OnStockBajo(handler func(context.Context, *models.StockBajoEvent) error) {
	eh.onStockBajo = handler
}

// OnSolicitudActualizada registers a handler for SolicitudActualizada events
func (eh *EventHandler) OnSolicitudActualizada(handler func(context.Context, *models.SolicitudActualizadaEvent) error) {
	eh.onSolicitudActualizada = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeStockBajo:
		if eh.onStockBajo != nil {
			var event models.StockBajoEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockBajo event: %w", err)
			}
			return eh.onStockBajo(ctx, &event)
		}

	case models.EventTypeSolicitudActualizada:
		if eh.onSolicitudActualizada != nil {
			var event models.SolicitudActualizadaEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SolicitudActualizada event: %w", err)
			}
			return eh.onSolicitudActualizada(ctx, &event)
		}

	case models.EventTypeSolicitudCreada:
		// consumed by store-facing services, nothing to do here

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
