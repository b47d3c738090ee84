package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeSolicitudCreada      = "SOLICITUD_CREADA"
	EventTypeSolicitudActualizada = "SOLICITUD_ACTUALIZADA"
	EventTypeStockBajo            = "STOCK_BAJO"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SolicitudCreadaEvent published when a store submits a request
type SolicitudCreadaEvent struct {
	BaseEvent
	SolicitudID  int64      `json:"solicitud_id"`
	TiendaID     int64      `json:"tienda_id"`
	TiendaNombre string     `json:"tienda_nombre"`
	Productos    []LineItem `json:"productos"`
}

// SolicitudActualizadaEvent published after a committed state transition
type SolicitudActualizadaEvent struct {
	BaseEvent
	SolicitudID      int64      `json:"solicitud_id"`
	TiendaID         int64      `json:"tienda_id"`
	EstadoAnterior   string     `json:"estado_anterior"`
	Estado           string     `json:"estado"`
	Aprobados        []Approval `json:"aprobados,omitempty"`
	CantidadAprobada int        `json:"cantidad_aprobada"`
}

// StockBajoEvent published when an approval leaves a product under the low-stock threshold
type StockBajoEvent struct {
	BaseEvent
	ProductoID  int64  `json:"producto_id"`
	Nombre      string `json:"nombre"`
	Cantidad    int    `json:"cantidad"`
	Umbral      int    `json:"umbral"`
	SolicitudID int64  `json:"solicitud_id"`
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
