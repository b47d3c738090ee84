package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	s1 := f.createStore(t, "s1")

	req, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
		TiendaID: s1.ID,
		Productos: []LineItemInput{{
			ID: FlexInt(jam.ID), Nombre: "Jam", Precio: decimal.RequireFromString("3.99"),
			Cantidad: 10, Unidad: "jar", Categoria: "x",
		}},
		Total:       decimal.RequireFromString("39.90"),
		Comentarios: "urgente",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, s1.Storename, req.TiendaNombre)
	assert.Equal(t, models.EstadoPendiente, req.Estado)
	assert.Nil(t, req.FechaActualizacion)
	assert.Equal(t, "39.9", req.Total.String())
	assert.Equal(t, "urgente", req.Comentarios)
	assert.Equal(t, []models.LineItem{{
		ID: jam.ID, Nombre: "Jam", Precio: decimal.RequireFromString("3.99"),
		Cantidad: 10, Unidad: "jar", Categoria: "x",
	}}, req.Productos)
	assert.Equal(t, 100, f.product(t, jam.ID).Cantidad, "creation reserves nothing")

	require.Len(t, f.events.creadas, 1)
	assert.Equal(t, req.ID, f.events.creadas[0].SolicitudID)
}

func TestCreateRequestErrors(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 5)
	s1 := f.createStore(t, "s1")

	t.Run("Unknown store", func(t *testing.T) {
		_, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
			TiendaID:  99,
			Productos: []LineItemInput{{ID: FlexInt(jam.ID), Cantidad: 1}},
		})

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, EntityTienda, nf.Entity)
	})

	t.Run("Short lines", func(t *testing.T) {
		_, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
			TiendaID: s1.ID,
			Productos: []LineItemInput{
				{ID: FlexInt(jam.ID), Nombre: "Jam", Cantidad: 6},
				{ID: 42, Nombre: "Fantasma", Cantidad: 1},
			},
		})

		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, []models.Shortage{
			{ProductoID: jam.ID, ProductoNombre: "Jam", CantidadSolicitada: 6, CantidadDisponible: 5, Motivo: "Stock insuficiente"},
			{ProductoID: 42, ProductoNombre: "Fantasma", CantidadSolicitada: 1, CantidadDisponible: 0, Motivo: "Producto no encontrado en sistema"},
		}, stockErr.Shortages)
	})

	t.Run("No line items", func(t *testing.T) {
		_, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{TiendaID: s1.ID})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Zero quantity line", func(t *testing.T) {
		_, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
			TiendaID:  s1.ID,
			Productos: []LineItemInput{{ID: FlexInt(jam.ID), Cantidad: 0}},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	requests, err := f.ledger.ListRequests(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestRequestKeepsStoreNameAfterStoreDeleted(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	s1 := f.createStore(t, "s1")
	req := f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})

	_, err := f.directory.DeleteStore(f.ctx, s1.ID)
	require.NoError(t, err)

	stored, err := f.ledger.GetRequest(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tienda s1", stored.TiendaNombre)
}

func TestCreateRequestIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	s1 := f.createStore(t, "s1")

	in := &CreateRequestInput{
		TiendaID:       s1.ID,
		Productos:      []LineItemInput{{ID: FlexInt(jam.ID), Cantidad: 2}},
		IdempotencyKey: "pedido-abc",
	}

	first, err := f.ledger.CreateRequest(f.ctx, in)
	require.NoError(t, err)
	second, err := f.ledger.CreateRequest(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	in.IdempotencyKey = "pedido-def"
	third, err := f.ledger.CreateRequest(f.ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	requests, err := f.ledger.ListRequests(f.ctx)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
	assert.Len(t, f.events.creadas, 2)
}

func TestListAndGetRequests(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	s1 := f.createStore(t, "s1")
	s2 := f.createStore(t, "s2")

	f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})
	f.createRequest(t, s2.ID, [2]int64{jam.ID, 2})
	f.createRequest(t, s1.ID, [2]int64{jam.ID, 3})

	all, err := f.ledger.ListRequests(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := f.ledger.ListRequestsByStore(f.ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(1), mine[0].ID)
	assert.Equal(t, int64(3), mine[1].ID)

	none, err := f.ledger.ListRequestsByStore(f.ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	got, err := f.ledger.GetRequest(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, got.TiendaID)

	_, err = f.ledger.GetRequest(f.ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprovedProducts(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	honey := f.createProduct(t, "Honey", 50)
	s1 := f.createStore(t, "s1")

	accepted := f.createRequest(t, s1.ID, [2]int64{jam.ID, 10}, [2]int64{honey.ID, 4})
	_, err := f.engine.Transition(f.ctx, accepted.ID, approve(models.EstadoAceptada,
		[3]int{int(jam.ID), 10, 8},
		[3]int{int(honey.ID), 4, 4},
	))
	require.NoError(t, err)

	rejected := f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})
	_, err = f.engine.Transition(f.ctx, rejected.ID, &TransitionInput{Estado: models.EstadoRechazada})
	require.NoError(t, err)

	f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})

	approved, err := f.ledger.ApprovedProducts(f.ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, approved, 2)

	assert.Equal(t, jam.ID, approved[0].ID)
	assert.Equal(t, "Jam", approved[0].Nombre)
	assert.Equal(t, 92, approved[0].Cantidad, "joined with the current catalog entry")
	assert.Equal(t, 8, approved[0].CantidadAprobada)
	assert.Equal(t, accepted.ID, approved[0].SolicitudID)
	assert.NotNil(t, approved[0].FechaAprobacion)
	assert.Nil(t, approved[0].Movimientos)

	assert.Equal(t, honey.ID, approved[1].ID)
	assert.Equal(t, 4, approved[1].CantidadAprobada)

	other, err := f.ledger.ApprovedProducts(f.ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestActivityLog(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	s1 := f.createStore(t, "s1")

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	tick := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	f.ledger.now = tick
	f.engine.now = tick

	first := f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})  // 10:01
	second := f.createRequest(t, s1.ID, [2]int64{jam.ID, 2}) // 10:02
	_, err := f.engine.Transition(f.ctx, first.ID, &TransitionInput{
		Estado:      models.EstadoRechazada,
		Comentarios: "fuera de temporada",
	}) // 10:03
	require.NoError(t, err)

	activities, err := f.ledger.ActivityLog(f.ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, activities, 3)

	assert.Equal(t, models.ActivityActualizacion, activities[0].Tipo)
	assert.Equal(t, first.ID, activities[0].ID)
	assert.Equal(t, "Solicitud #1 rechazada", activities[0].Detalles)
	assert.Equal(t, "fuera de temporada", activities[0].Comentarios)

	assert.Equal(t, models.ActivitySolicitud, activities[1].Tipo)
	assert.Equal(t, second.ID, activities[1].ID)
	assert.Equal(t, "Solicitud #2 - pendiente", activities[1].Detalles)
	require.NotNil(t, activities[1].Total)
	assert.Len(t, activities[1].Productos, 1)

	assert.Equal(t, models.ActivitySolicitud, activities[2].Tipo)
	assert.Equal(t, "Solicitud #1 - rechazada", activities[2].Detalles)
}

// flakyBackend fails the next `failures` batches
type flakyBackend struct {
	store.Backend
	mu       sync.Mutex
	failures int
}

func (b *flakyBackend) failNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
}

func (b *flakyBackend) SaveBatch(ctx context.Context, docs []store.Document) error {
	b.mu.Lock()
	if b.failures > 0 {
		b.failures--
		b.mu.Unlock()
		return errors.New("disk full")
	}
	b.mu.Unlock()
	return b.Backend.SaveBatch(ctx, docs)
}

func TestIdempotencyKeySurvivesFailedSave(t *testing.T) {
	fileBackend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backend := &flakyBackend{Backend: fileBackend}
	f := newFixtureWithBackend(t, backend)

	jam := f.createProduct(t, "Jam", 100)
	storeA := f.createStore(t, "a")
	storeB := f.createStore(t, "b")

	submitA := &CreateRequestInput{
		TiendaID:       storeA.ID,
		Productos:      []LineItemInput{{ID: FlexInt(jam.ID), Cantidad: 2}},
		IdempotencyKey: "key-A",
	}

	backend.failNext(1)
	_, err = f.ledger.CreateRequest(f.ctx, submitA)
	var ioErr *store.IOError
	require.ErrorAs(t, err, &ioErr)

	_, found, err := f.ledger.idempotency.LookupRequest(f.ctx, "key-A")
	require.NoError(t, err)
	assert.False(t, found, "a failed save leaves the key unused")

	// takes the id the failed attempt had picked
	fromB := f.createRequest(t, storeB.ID, [2]int64{jam.ID, 1})
	assert.Equal(t, int64(1), fromB.ID)

	retried, err := f.ledger.CreateRequest(f.ctx, submitA)
	require.NoError(t, err)
	assert.Equal(t, storeA.ID, retried.TiendaID)
	assert.NotEqual(t, fromB.ID, retried.ID)

	again, err := f.ledger.CreateRequest(f.ctx, submitA)
	require.NoError(t, err)
	assert.Equal(t, retried.ID, again.ID)
}

func TestIdempotencyKeyNeverReplaysAnotherStoresRequest(t *testing.T) {
	f := newFixture(t)
	jam := f.createProduct(t, "Jam", 100)
	storeA := f.createStore(t, "a")
	storeB := f.createStore(t, "b")

	fromB := f.createRequest(t, storeB.ID, [2]int64{jam.ID, 1})
	require.NoError(t, f.ledger.idempotency.RememberRequest(f.ctx, "shared", fromB.ID))

	fromA, err := f.ledger.CreateRequest(f.ctx, &CreateRequestInput{
		TiendaID:       storeA.ID,
		Productos:      []LineItemInput{{ID: FlexInt(jam.ID), Cantidad: 1}},
		IdempotencyKey: "shared",
	})
	require.NoError(t, err)
	assert.Equal(t, storeA.ID, fromA.TiendaID)
	assert.NotEqual(t, fromB.ID, fromA.ID)

	id, found, err := f.ledger.idempotency.LookupRequest(f.ctx, "shared")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, fromA.ID, id)
}
