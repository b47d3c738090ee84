package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// precio and total travel as plain JSON numbers, the way the front-ends send them.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Cantidad is the authoritative on-hand stock.
type Product struct {
	ID          int64           `json:"id"`
	Nombre      string          `json:"nombre"`
	Descripcion string          `json:"descripcion"`
	Precio      decimal.Decimal `json:"precio"`
	Cantidad    int             `json:"cantidad"`
	Categoria   string          `json:"categoria"`
	Unidad      string          `json:"unidad"`
	Fecha       time.Time       `json:"fecha"`
	Movimientos []Movement      `json:"movimientos,omitempty"`
}

// Movement is one entry of a product's stock audit trail.
type Movement struct {
	Tipo        string    `json:"tipo"`
	Cantidad    int       `json:"cantidad"`
	Fecha       time.Time `json:"fecha"`
	Destino     string    `json:"destino"`
	SolicitudID int64     `json:"solicitudId"`
}

// Movement types
const (
	MovementSalida  = "salida"
	MovementEntrada = "entrada"
)

// Store is a shop that places purchase requests. Password holds a bcrypt hash.
type Store struct {
	ID            int64     `json:"id"`
	Storename     string    `json:"storename"`
	Username      string    `json:"username"`
	Password      string    `json:"password"`
	FechaCreacion time.Time `json:"fechaCreacion"`
	Activa        bool      `json:"activa"`
}

// PublicStore is a Store without its credentials.
type PublicStore struct {
	ID            int64     `json:"id"`
	Storename     string    `json:"storename"`
	Username      string    `json:"username"`
	FechaCreacion time.Time `json:"fechaCreacion"`
	Activa        bool      `json:"activa"`
}

// Public strips the password hash.
func (s Store) Public() PublicStore {
	return PublicStore{
		ID:            s.ID,
		Storename:     s.Storename,
		Username:      s.Username,
		FechaCreacion: s.FechaCreacion,
		Activa:        s.Activa,
	}
}

// LineItem is a snapshot of one requested product at request creation.
type LineItem struct {
	ID        int64           `json:"id"`
	Nombre    string          `json:"nombre"`
	Precio    decimal.Decimal `json:"precio"`
	Cantidad  int             `json:"cantidad"`
	Unidad    string          `json:"unidad"`
	Categoria string          `json:"categoria"`
}

// Approval is the supplier's decision for one line item.
type Approval struct {
	ProductoID         int64 `json:"productoId"`
	CantidadSolicitada int   `json:"cantidadSolicitada"`
	CantidadAprobada   int   `json:"cantidadAprobada"`
}

// Request is a store's purchase request (solicitud).
type Request struct {
	ID                 int64           `json:"id"`
	TiendaID           int64           `json:"tiendaId"`
	TiendaNombre       string          `json:"tiendaNombre"`
	Productos          []LineItem      `json:"productos"`
	Total              decimal.Decimal `json:"total"`
	Comentarios        string          `json:"comentarios"`
	Fecha              time.Time       `json:"fecha"`
	Estado             string          `json:"estado"`
	FechaActualizacion *time.Time      `json:"fechaActualizacion"`
	ProductosAprobados []Approval      `json:"productosAprobados,omitempty"`
	CantidadAprobada   *int            `json:"cantidadAprobada,omitempty"`
}

// Request states
const (
	EstadoPendiente  = "pendiente"
	EstadoAceptada   = "aceptada"
	EstadoRechazada  = "rechazada"
	EstadoModificada = "modificada"
)

// IsTerminal reports whether no further transition is allowed from estado.
func IsTerminal(estado string) bool {
	return estado == EstadoAceptada || estado == EstadoRechazada
}

// Shortage describes a line item that current stock cannot cover.
type Shortage struct {
	ProductoID         int64  `json:"productoId"`
	ProductoNombre     string `json:"productoNombre,omitempty"`
	CantidadSolicitada int    `json:"cantidadSolicitada"`
	CantidadDisponible int    `json:"cantidadDisponible"`
	Motivo             string `json:"motivo,omitempty"`
}

// Stats is the supplier dashboard aggregate.
type Stats struct {
	TotalProductos         int `json:"totalProductos"`
	TotalTiendas           int `json:"totalTiendas"`
	TotalSolicitudes       int `json:"totalSolicitudes"`
	SolicitudesPendientes  int `json:"solicitudesPendientes"`
	SolicitudesAceptadas   int `json:"solicitudesAceptadas"`
	SolicitudesRechazadas  int `json:"solicitudesRechazadas"`
	SolicitudesModificadas int `json:"solicitudesModificadas"`
	StockTotal             int `json:"stockTotal"`
	ProductosBajoStock     int `json:"productosBajoStock"`
}

// ApprovedProduct is a product a store received through an accepted request.
type ApprovedProduct struct {
	Product
	CantidadAprobada int        `json:"cantidadAprobada"`
	FechaAprobacion  *time.Time `json:"fechaAprobacion"`
	SolicitudID      int64      `json:"solicitudId"`
}

// Activity is one entry of a store's activity log.
type Activity struct {
	Tipo        string           `json:"tipo"`
	ID          int64            `json:"id"`
	Fecha       time.Time        `json:"fecha"`
	Estado      string           `json:"estado"`
	Detalles    string           `json:"detalles"`
	Productos   []LineItem       `json:"productos,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Comentarios string           `json:"comentarios,omitempty"`
}

// Activity types
const (
	ActivitySolicitud     = "solicitud"
	ActivityActualizacion = "actualizacion"
)
