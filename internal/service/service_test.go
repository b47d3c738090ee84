package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu           sync.Mutex
	creadas      []*models.SolicitudCreadaEvent
	actualizadas []*models.SolicitudActualizadaEvent
	stockBajo    []*models.StockBajoEvent
}

func (p *recordingPublisher) PublishSolicitudCreada(_ context.Context, e *models.SolicitudCreadaEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creadas = append(p.creadas, e)
	return nil
}

func (p *recordingPublisher) PublishSolicitudActualizada(_ context.Context, e *models.SolicitudActualizadaEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actualizadas = append(p.actualizadas, e)
	return nil
}

func (p *recordingPublisher) PublishStockBajo(_ context.Context, e *models.StockBajoEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockBajo = append(p.stockBajo, e)
	return nil
}

type fixture struct {
	ctx       context.Context
	store     *store.Store
	catalog   *CatalogService
	directory *DirectoryService
	ledger    *LedgerService
	engine    *ApprovalEngine
	stats     *StatsService
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return newFixtureWithBackend(t, backend)
}

func newFixtureWithBackend(t *testing.T, backend store.Backend) *fixture {
	t.Helper()
	util.SetLogger(zap.NewNop())

	st := store.NewStore(backend, nil)
	t.Cleanup(func() { _ = st.Close() })

	events := &recordingPublisher{}
	directory := NewDirectoryService(st)
	directory.hashCost = bcrypt.MinCost

	return &fixture{
		ctx:       context.Background(),
		store:     st,
		catalog:   NewCatalogService(st),
		directory: directory,
		ledger:    NewLedgerService(st, events, NewMemoryIdempotency(time.Hour)),
		engine:    NewApprovalEngine(st, events, 5),
		stats:     NewStatsService(st, 5),
		events:    events,
	}
}

func qty(n int) *FlexInt {
	v := FlexInt(n)
	return &v
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) createProduct(t *testing.T, nombre string, cantidad int) *models.Product {
	t.Helper()

	p, _, err := f.catalog.CreateProduct(f.ctx, &CreateProductInput{
		Nombre:    nombre,
		Precio:    price("3.99"),
		Cantidad:  qty(cantidad),
		Categoria: "x",
		Unidad:    "jar",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) createStore(t *testing.T, username string) *models.Store {
	t.Helper()

	s, err := f.directory.CreateStore(f.ctx, &CreateStoreInput{
		Storename: "Tienda " + username,
		Username:  username,
		Password:  "p",
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) setStock(t *testing.T, productID int64, cantidad int) {
	t.Helper()

	_, err := f.catalog.UpdateProduct(f.ctx, productID, &UpdateProductInput{Cantidad: qty(cantidad)})
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id int64) models.Product {
	t.Helper()

	products, err := f.catalog.ListProducts(f.ctx)
	require.NoError(t, err)
	for _, p := range products {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("product %d not found", id)
	return models.Product{}
}

// createRequest places a request for the given product/quantity pairs
func (f *fixture) createRequest(t *testing.T, tiendaID int64, lines ...[2]int64) *models.Request {
	t.Helper()

	items := make([]LineItemInput, len(lines))
	for i, l := range lines {
		items[i] = LineItemInput{
			ID:        FlexInt(l[0]),
			Nombre:    "item",
			Precio:    decimal.RequireFromString("3.99"),
			Cantidad:  FlexInt(l[1]),
			Unidad:    "jar",
			Categoria: "x",
		}
	}

	r, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
		TiendaID:  tiendaID,
		Productos: items,
		Total:     decimal.RequireFromString("39.90"),
	})
	require.NoError(t, err)
	return r
}

func approve(estado string, lines ...[3]int) *TransitionInput {
	in := &TransitionInput{Estado: estado, ProductosAprobados: []ApprovalInput{}}
	for _, l := range lines {
		in.ProductosAprobados = append(in.ProductosAprobados, ApprovalInput{
			ProductoID:         FlexInt(l[0]),
			CantidadSolicitada: FlexInt(l[1]),
			CantidadAprobada:   FlexInt(l[2]),
		})
	}
	return in
}
