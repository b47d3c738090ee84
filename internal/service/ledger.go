package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/broker"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	motivoNoEncontrado      = "Producto no encontrado en sistema"
	motivoStockInsuficiente = "Stock insuficiente"
)

// LedgerService records purchase requests and answers store-side queries about them
type LedgerService struct {
	store          *store.Store
	eventPublisher broker.Publisher
	idempotency    IdempotencyStore
	validate       *validator.Validate
	logger         *zap.Logger
	now            func() time.Time
}

// NewLedgerService creates a new request ledger. A nil idempotency store disables replay detection.
func NewLedgerService(st *store.Store, eventPublisher broker.Publisher, idempotency IdempotencyStore) *LedgerService {
	if eventPublisher == nil {
		eventPublisher = broker.NopPublisher{}
	}
	return &LedgerService{
		store:          st,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		validate:       newValidator(),
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateRequestInput is a store's purchase request
type CreateRequestInput struct {
	TiendaID       int64           `json:"tiendaId" validate:"required"`
	Productos      []LineItemInput `json:"productos" validate:"required,min=1,dive"`
	Total          decimal.Decimal `json:"total"`
	Comentarios    string          `json:"comentarios"`
	IdempotencyKey string          `json:"-"`
}

// LineItemInput is one requested product as the store saw it
type LineItemInput struct {
	ID        FlexInt         `json:"id" validate:"required"`
	Nombre    string          `json:"nombre"`
	Precio    decimal.Decimal `json:"precio"`
	Cantidad  FlexInt         `json:"cantidad" validate:"gt=0"`
	Unidad    string          `json:"unidad"`
	Categoria string          `json:"categoria"`
}

// CreateRequest stores a pending request after checking the store exists and
// that current stock covers every line item. Nothing is reserved.
func (s *LedgerService) CreateRequest(ctx context.Context, in *CreateRequestInput) (*models.Request, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CreateRequest",
		attribute.Int64("tienda.id", in.TiendaID))
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err, "Datos de solicitud incompletos: tiendaId y productos son requeridos")
	}

	var created models.Request
	replayed := false

	err := s.store.Update(ctx, []string{store.Products, store.Stores, store.Requests, store.Sequences}, func(tx *store.Tx) error {
		requests, err := tx.Requests()
		if err != nil {
			return err
		}

		if in.IdempotencyKey != "" && s.idempotency != nil {
			id, found, err := s.idempotency.LookupRequest(ctx, in.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("failed to check idempotency: %w", err)
			}
			if idx := findRequest(requests, id); found && idx >= 0 {
				if requests[idx].TiendaID == in.TiendaID {
					created = requests[idx]
					replayed = true
					return nil
				}
				s.logger.Warn("Idempotency key points at another store's request",
					zap.String("idempotency_key", in.IdempotencyKey),
					zap.Int64("solicitud_id", id),
					zap.Int64("tienda_id", in.TiendaID))
			}
		}

		stores, err := tx.Stores()
		if err != nil {
			return err
		}
		storeIdx := findStore(stores, in.TiendaID)
		if storeIdx < 0 {
			return &NotFoundError{Entity: EntityTienda, ID: in.TiendaID}
		}

		products, err := tx.Products()
		if err != nil {
			return err
		}
		if shortages := lineItemShortages(products, in.Productos); len(shortages) > 0 {
			return &InsufficientStockError{Shortages: shortages}
		}

		items := make([]models.LineItem, len(in.Productos))
		for i, p := range in.Productos {
			items[i] = models.LineItem{
				ID:        int64(p.ID),
				Nombre:    p.Nombre,
				Precio:    p.Precio,
				Cantidad:  int(p.Cantidad),
				Unidad:    p.Unidad,
				Categoria: p.Categoria,
			}
		}

		id, err := assignID(tx, store.Requests, requests, requestID)
		if err != nil {
			return err
		}

		created = models.Request{
			ID:           id,
			TiendaID:     in.TiendaID,
			TiendaNombre: stores[storeIdx].Storename,
			Productos:    items,
			Total:        in.Total,
			Comentarios:  in.Comentarios,
			Fecha:        s.now(),
			Estado:       models.EstadoPendiente,
		}
		tx.SetRequests(append(requests, created))

		if in.IdempotencyKey != "" && s.idempotency != nil {
			key, id := in.IdempotencyKey, created.ID
			tx.OnCommit(func() {
				if err := s.idempotency.RememberRequest(ctx, key, id); err != nil {
					s.logger.Error("Failed to store idempotency key",
						zap.String("idempotency_key", key),
						zap.Int64("solicitud_id", id),
						zap.Error(err))
				}
			})
		}
		return nil
	})
	if err != nil {
		util.FailSpan(span, err)
		return nil, err
	}

	if replayed {
		s.logger.Info("Duplicate request submission detected",
			zap.String("idempotency_key", in.IdempotencyKey),
			zap.Int64("solicitud_id", created.ID))
		return &created, nil
	}

	util.RequestsCreatedTotal.Inc()
	s.logger.Info("Request created",
		zap.Int64("solicitud_id", created.ID),
		zap.Int64("tienda_id", created.TiendaID),
		zap.Int("items", len(created.Productos)))

	event := &models.SolicitudCreadaEvent{
		BaseEvent:    models.NewBaseEvent(models.EventTypeSolicitudCreada),
		SolicitudID:  created.ID,
		TiendaID:     created.TiendaID,
		TiendaNombre: created.TiendaNombre,
		Productos:    created.Productos,
	}
	if err := s.eventPublisher.PublishSolicitudCreada(ctx, event); err != nil {
		s.logger.Error("Failed to publish SolicitudCreada event", zap.Error(err))
	}

	return &created, nil
}

// lineItemShortages checks each line on its own against current stock
func lineItemShortages(products []models.Product, items []LineItemInput) []models.Shortage {
	var shortages []models.Shortage
	for _, item := range items {
		idx := findProduct(products, int64(item.ID))
		switch {
		case idx < 0:
			shortages = append(shortages, models.Shortage{
				ProductoID:         int64(item.ID),
				ProductoNombre:     item.Nombre,
				CantidadSolicitada: int(item.Cantidad),
				CantidadDisponible: 0,
				Motivo:             motivoNoEncontrado,
			})
		case products[idx].Cantidad < int(item.Cantidad):
			shortages = append(shortages, models.Shortage{
				ProductoID:         int64(item.ID),
				ProductoNombre:     item.Nombre,
				CantidadSolicitada: int(item.Cantidad),
				CantidadDisponible: products[idx].Cantidad,
				Motivo:             motivoStockInsuficiente,
			})
		}
	}
	return shortages
}

// ListRequests returns every request
func (s *LedgerService) ListRequests(ctx context.Context) ([]models.Request, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListRequests")
	defer span.End()

	return s.requests(ctx, func(models.Request) bool { return true })
}

// ListRequestsByStore returns the requests placed by one store
func (s *LedgerService) ListRequestsByStore(ctx context.Context, tiendaID int64) ([]models.Request, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListRequestsByStore")
	defer span.End()

	return s.requests(ctx, func(r models.Request) bool { return r.TiendaID == tiendaID })
}

// GetRequest returns one request
func (s *LedgerService) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetRequest")
	defer span.End()

	found, err := s.requests(ctx, func(r models.Request) bool { return r.ID == id })
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &NotFoundError{Entity: EntitySolicitud, ID: id}
	}
	return &found[0], nil
}

func (s *LedgerService) requests(ctx context.Context, keep func(models.Request) bool) ([]models.Request, error) {
	out := []models.Request{}
	err := s.store.View(ctx, []string{store.Requests}, func(tx *store.Tx) error {
		requests, err := tx.Requests()
		if err != nil {
			return err
		}
		for _, r := range requests {
			if keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApprovedProducts lists what a store received through its accepted requests,
// joined with the current catalog entry. Lines whose product was deleted are skipped.
func (s *LedgerService) ApprovedProducts(ctx context.Context, tiendaID int64) ([]models.ApprovedProduct, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ApprovedProducts")
	defer span.End()

	out := []models.ApprovedProduct{}
	err := s.store.View(ctx, []string{store.Products, store.Requests}, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		requests, err := tx.Requests()
		if err != nil {
			return err
		}

		for _, r := range requests {
			if r.TiendaID != tiendaID || r.Estado != models.EstadoAceptada {
				continue
			}
			for _, a := range r.ProductosAprobados {
				idx := findProduct(products, a.ProductoID)
				if idx < 0 {
					continue
				}
				p := products[idx]
				p.Movimientos = nil
				out = append(out, models.ApprovedProduct{
					Product:          p,
					CantidadAprobada: a.CantidadAprobada,
					FechaAprobacion:  r.FechaActualizacion,
					SolicitudID:      r.ID,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActivityLog returns a store's request history, newest first: one entry per
// request and one per request that has been transitioned.
func (s *LedgerService) ActivityLog(ctx context.Context, tiendaID int64) ([]models.Activity, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ActivityLog")
	defer span.End()

	requests, err := s.ListRequestsByStore(ctx, tiendaID)
	if err != nil {
		return nil, err
	}

	activities := make([]models.Activity, 0, len(requests))
	for _, r := range requests {
		total := r.Total
		activities = append(activities, models.Activity{
			Tipo:      models.ActivitySolicitud,
			ID:        r.ID,
			Fecha:     r.Fecha,
			Estado:    r.Estado,
			Detalles:  fmt.Sprintf("Solicitud #%d - %s", r.ID, r.Estado),
			Productos: r.Productos,
			Total:     &total,
		})

		if r.FechaActualizacion != nil {
			activities = append(activities, models.Activity{
				Tipo:        models.ActivityActualizacion,
				ID:          r.ID,
				Fecha:       *r.FechaActualizacion,
				Estado:      r.Estado,
				Detalles:    fmt.Sprintf("Solicitud #%d %s", r.ID, r.Estado),
				Comentarios: r.Comentarios,
			})
		}
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Fecha.After(activities[j].Fecha)
	})
	return activities, nil
}

func findRequest(requests []models.Request, id int64) int {
	for i := range requests {
		if requests[i].ID == id {
			return i
		}
	}
	return -1
}

func requestID(r models.Request) int64 { return r.ID }
