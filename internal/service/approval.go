package service

import (
	"context"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/broker"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ApprovalEngine moves requests through their states and commits the stock they consume
type ApprovalEngine struct {
	store             *store.Store
	eventPublisher    broker.Publisher
	lowStockThreshold int
	validate          *validator.Validate
	logger            *zap.Logger
	now               func() time.Time
}

// NewApprovalEngine creates a new approval engine
func NewApprovalEngine(st *store.Store, eventPublisher broker.Publisher, lowStockThreshold int) *ApprovalEngine {
	if eventPublisher == nil {
		eventPublisher = broker.NopPublisher{}
	}
	return &ApprovalEngine{
		store:             st,
		eventPublisher:    eventPublisher,
		lowStockThreshold: lowStockThreshold,
		validate:          newValidator(),
		logger:            util.GetLogger(),
		now:               time.Now,
	}
}

// TransitionInput is the supplier's decision on a request. A nil
// ProductosAprobados keeps whatever the request has already committed.
type TransitionInput struct {
	Estado             string          `json:"estado" validate:"required"`
	Comentarios        string          `json:"comentarios"`
	ProductosAprobados []ApprovalInput `json:"productosAprobados" validate:"omitempty,dive"`
}

// ApprovalInput is the approved quantity for one product
type ApprovalInput struct {
	ProductoID         FlexInt `json:"productoId" validate:"required"`
	CantidadSolicitada FlexInt `json:"cantidadSolicitada"`
	CantidadAprobada   FlexInt `json:"cantidadAprobada" validate:"gte=0"`
}

// stockChange is the net movement one transition applies to a product
type stockChange struct {
	productoID int64
	delta      int
}

// Transition applies an accept, modify or reject decision in one cycle over
// products and requests.
//
// The request's productosAprobados is its current stock commitment. Accept and
// modify replace it with the new approvals; reject drops it. Only the
// difference per product touches stock, so re-approving a modificada request
// never takes the same units twice. Either every positive difference is
// covered by stock and the whole change commits, or nothing does.
func (e *ApprovalEngine) Transition(ctx context.Context, id int64, in *TransitionInput) (*models.Request, error) {
	ctx, span := util.StartSpan(ctx, "ApprovalEngine.Transition",
		attribute.Int64("solicitud.id", id),
		attribute.String("solicitud.estado", in.Estado))
	defer span.End()

	start := time.Now()
	defer func() {
		util.ApprovalLatency.Observe(time.Since(start).Seconds())
	}()

	if err := e.validate.Struct(in); err != nil {
		util.ApprovalsFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, validationError(err, "Datos de actualización inválidos")
	}
	switch in.Estado {
	case models.EstadoPendiente, models.EstadoAceptada, models.EstadoRechazada, models.EstadoModificada:
	default:
		util.ApprovalsFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, &ValidationError{Fields: []string{"estado"}, Message: "Estado inválido: " + in.Estado}
	}

	var (
		updated        models.Request
		estadoAnterior string
		changes        []stockChange
		lowStock       []models.Product
	)

	err := e.store.Update(ctx, []string{store.Products, store.Requests}, func(tx *store.Tx) error {
		requests, err := tx.Requests()
		if err != nil {
			return err
		}

		idx := findRequest(requests, id)
		if idx < 0 {
			return &NotFoundError{Entity: EntitySolicitud, ID: id}
		}
		req := requests[idx]

		if models.IsTerminal(req.Estado) || in.Estado == models.EstadoPendiente {
			return &InvalidTransitionError{ID: id, From: req.Estado, To: in.Estado}
		}

		approvals := req.ProductosAprobados
		switch {
		case in.Estado == models.EstadoRechazada:
			approvals = nil
		case in.ProductosAprobados != nil:
			approvals = committedApprovals(in.ProductosAprobados)
		}

		changes = diffCommitments(req.ProductosAprobados, approvals)

		products, err := tx.Products()
		if err != nil {
			return err
		}
		if shortages := e.shortages(products, req.ProductosAprobados, in.ProductosAprobados, changes); len(shortages) > 0 {
			return &InsufficientStockError{Shortages: shortages}
		}

		now := e.now()
		lowStock = lowStock[:0]
		for _, c := range changes {
			pIdx := findProduct(products, c.productoID)
			if pIdx < 0 {
				// product deleted after the units were committed
				e.logger.Warn("Cannot return stock to missing product",
					zap.Int64("producto_id", c.productoID),
					zap.Int64("solicitud_id", id),
					zap.Int("cantidad", -c.delta))
				continue
			}

			p := &products[pIdx]
			if c.delta > 0 {
				if err := withdrawStock(p, c.delta, req.TiendaNombre, id, now); err != nil {
					return err
				}
				if p.Cantidad < e.lowStockThreshold {
					lowStock = append(lowStock, *p)
				}
			} else {
				moveStock(p, models.MovementEntrada, -c.delta, req.TiendaNombre, id, now)
			}
		}
		if len(changes) > 0 {
			tx.SetProducts(products)
		}

		estadoAnterior = req.Estado
		req.Estado = in.Estado
		req.Comentarios = in.Comentarios
		req.FechaActualizacion = &now

		if in.Estado == models.EstadoRechazada {
			req.ProductosAprobados = nil
			req.CantidadAprobada = nil
		} else if in.ProductosAprobados != nil {
			total := 0
			for _, a := range approvals {
				total += a.CantidadAprobada
			}
			req.ProductosAprobados = approvals
			req.CantidadAprobada = &total
		}

		requests[idx] = req
		tx.SetRequests(requests)
		updated = req
		return nil
	})
	if err != nil {
		util.FailSpan(span, err)
		e.recordFailure(err)
		return nil, err
	}

	e.recordSuccess(&updated, estadoAnterior, changes)
	e.publish(ctx, &updated, estadoAnterior, lowStock)

	return &updated, nil
}

// committedApprovals drops zero quantity lines, keeping the caller's order
func committedApprovals(in []ApprovalInput) []models.Approval {
	out := make([]models.Approval, 0, len(in))
	for _, a := range in {
		if a.CantidadAprobada <= 0 {
			continue
		}
		out = append(out, models.Approval{
			ProductoID:         int64(a.ProductoID),
			CantidadSolicitada: int(a.CantidadSolicitada),
			CantidadAprobada:   int(a.CantidadAprobada),
		})
	}
	return out
}

// diffCommitments returns the per product difference between two approval
// lists. Repeated product ids are summed.
func diffCommitments(from, to []models.Approval) []stockChange {
	var order []int64
	delta := make(map[int64]int)
	add := func(list []models.Approval, sign int) {
		for _, a := range list {
			if _, seen := delta[a.ProductoID]; !seen {
				order = append(order, a.ProductoID)
			}
			delta[a.ProductoID] += sign * a.CantidadAprobada
		}
	}
	add(to, 1)
	add(from, -1)

	var changes []stockChange
	for _, id := range order {
		if delta[id] != 0 {
			changes = append(changes, stockChange{productoID: id, delta: delta[id]})
		}
	}
	return changes
}

// shortages reports every positive change the catalog cannot cover. The
// available figure includes units the request already holds.
func (e *ApprovalEngine) shortages(products []models.Product, committed []models.Approval, proposed []ApprovalInput, changes []stockChange) []models.Shortage {
	var out []models.Shortage
	for _, c := range changes {
		if c.delta <= 0 {
			continue
		}

		available := 0
		if idx := findProduct(products, c.productoID); idx >= 0 {
			available = products[idx].Cantidad
			if available >= c.delta {
				continue
			}
		}

		held := 0
		for _, a := range committed {
			if a.ProductoID == c.productoID {
				held += a.CantidadAprobada
			}
		}
		solicitada := 0
		for _, a := range proposed {
			if int64(a.ProductoID) == c.productoID {
				solicitada += int(a.CantidadSolicitada)
			}
		}

		out = append(out, models.Shortage{
			ProductoID:         c.productoID,
			CantidadSolicitada: solicitada,
			CantidadDisponible: available + held,
		})
	}
	return out
}

func (e *ApprovalEngine) recordFailure(err error) {
	switch err.(type) {
	case *InsufficientStockError:
		util.ApprovalsFailedTotal.WithLabelValues("insufficient_stock").Inc()
	case *NotFoundError:
		util.ApprovalsFailedTotal.WithLabelValues("not_found").Inc()
	case *InvalidTransitionError:
		util.ApprovalsFailedTotal.WithLabelValues("invalid_transition").Inc()
	default:
		util.ApprovalsFailedTotal.WithLabelValues("store_error").Inc()
	}
}

func (e *ApprovalEngine) recordSuccess(req *models.Request, estadoAnterior string, changes []stockChange) {
	util.RequestsTransitionedTotal.WithLabelValues(req.Estado).Inc()
	for _, c := range changes {
		if c.delta > 0 {
			util.StockUnitsMovedTotal.WithLabelValues(models.MovementSalida).Add(float64(c.delta))
		} else {
			util.StockUnitsMovedTotal.WithLabelValues(models.MovementEntrada).Add(float64(-c.delta))
		}
	}

	e.logger.Info("Request transitioned",
		zap.Int64("solicitud_id", req.ID),
		zap.String("estado_anterior", estadoAnterior),
		zap.String("estado", req.Estado),
		zap.Int("stock_changes", len(changes)))
}

func (e *ApprovalEngine) publish(ctx context.Context, req *models.Request, estadoAnterior string, lowStock []models.Product) {
	cantidad := 0
	if req.CantidadAprobada != nil {
		cantidad = *req.CantidadAprobada
	}

	event := &models.SolicitudActualizadaEvent{
		BaseEvent:        models.NewBaseEvent(models.EventTypeSolicitudActualizada),
		SolicitudID:      req.ID,
		TiendaID:         req.TiendaID,
		EstadoAnterior:   estadoAnterior,
		Estado:           req.Estado,
		Aprobados:        req.ProductosAprobados,
		CantidadAprobada: cantidad,
	}
	if err := e.eventPublisher.PublishSolicitudActualizada(ctx, event); err != nil {
		e.logger.Error("Failed to publish SolicitudActualizada event", zap.Error(err))
	}

	for _, p := range lowStock {
		event := &models.StockBajoEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeStockBajo),
			ProductoID:  p.ID,
			Nombre:      p.Nombre,
			Cantidad:    p.Cantidad,
			Umbral:      e.lowStockThreshold,
			SolicitudID: req.ID,
		}
		if err := e.eventPublisher.PublishStockBajo(ctx, event); err != nil {
			e.logger.Error("Failed to publish StockBajo event", zap.Error(err))
		}
	}
}
