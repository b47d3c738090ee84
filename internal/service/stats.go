package service

import (
	"context"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"
)

// StatsService derives the supplier dashboard figures on every call
type StatsService struct {
	store             *store.Store
	lowStockThreshold int
}

func NewStatsService(st *store.Store, lowStockThreshold int) *StatsService {
	return &StatsService{store: st, lowStockThreshold: lowStockThreshold}
}

// Stats counts products, stores and requests by state from one consistent snapshot
func (s *StatsService) Stats(ctx context.Context) (*models.Stats, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.Stats")
	defer span.End()

	var stats models.Stats
	err := s.store.View(ctx, store.AllCollections, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		stores, err := tx.Stores()
		if err != nil {
			return err
		}
		requests, err := tx.Requests()
		if err != nil {
			return err
		}

		stats.TotalProductos = len(products)
		stats.TotalTiendas = len(stores)
		stats.TotalSolicitudes = len(requests)

		for _, p := range products {
			stats.StockTotal += p.Cantidad
			if p.Cantidad < s.lowStockThreshold {
				stats.ProductosBajoStock++
			}
		}

		for _, r := range requests {
			switch r.Estado {
			case models.EstadoPendiente:
				stats.SolicitudesPendientes++
			case models.EstadoAceptada:
				stats.SolicitudesAceptadas++
			case models.EstadoRechazada:
				stats.SolicitudesRechazadas++
			case models.EstadoModificada:
				stats.SolicitudesModificadas++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
