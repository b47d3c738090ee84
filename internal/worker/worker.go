package worker

import (
	"context"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/broker"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"go.uber.org/zap"
)

// Consumer is the part of broker.Consumer the workers use
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockAlertWorker reacts to low stock and request update events
type StockAlertWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(consumer Consumer) *StockAlertWorker {
	w := &StockAlertWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnStockBajo(w.HandleStockBajo)
	w.eventHandler.OnSolicitudActualizada(w.HandleSolicitudActualizada)

	return w
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}

// HandleStockBajo records a low stock alert
func (w *StockAlertWorker) HandleStockBajo(_ context.Context, event *models.StockBajoEvent) error {
	util.LowStockAlertsTotal.Inc()

	w.logger.Warn("Low stock",
		zap.Int64("producto_id", event.ProductoID),
		zap.String("nombre", event.Nombre),
		zap.Int("cantidad", event.Cantidad),
		zap.Int("umbral", event.Umbral),
		zap.Int64("solicitud_id", event.SolicitudID))
	return nil
}

// HandleSolicitudActualizada logs committed transitions
func (w *StockAlertWorker) HandleSolicitudActualizada(_ context.Context, event *models.SolicitudActualizadaEvent) error {
	w.logger.Info("Request updated",
		zap.Int64("solicitud_id", event.SolicitudID),
		zap.Int64("tienda_id", event.TiendaID),
		zap.String("estado_anterior", event.EstadoAnterior),
		zap.String("estado", event.Estado),
		zap.Int("cantidad_aprobada", event.CantidadAprobada))
	return nil
}
