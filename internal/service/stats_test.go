package service

import (
	"testing"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	f := newFixture(t)

	empty, err := f.stats.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{}, *empty)

	jam := f.createProduct(t, "Jam", 100)
	honey := f.createProduct(t, "Honey", 6)
	f.createProduct(t, "Agotado", 0)
	s1 := f.createStore(t, "s1")
	f.createStore(t, "s2")

	r1 := f.createRequest(t, s1.ID, [2]int64{jam.ID, 10})
	r2 := f.createRequest(t, s1.ID, [2]int64{honey.ID, 2})
	r3 := f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})
	f.createRequest(t, s1.ID, [2]int64{jam.ID, 1})

	_, err = f.engine.Transition(f.ctx, r1.ID, approve(models.EstadoAceptada, [3]int{int(jam.ID), 10, 10}))
	require.NoError(t, err)
	_, err = f.engine.Transition(f.ctx, r2.ID, approve(models.EstadoModificada, [3]int{int(honey.ID), 2, 2}))
	require.NoError(t, err)
	_, err = f.engine.Transition(f.ctx, r3.ID, &TransitionInput{Estado: models.EstadoRechazada})
	require.NoError(t, err)

	stats, err := f.stats.Stats(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, models.Stats{
		TotalProductos:         3,
		TotalTiendas:           2,
		TotalSolicitudes:       4,
		SolicitudesPendientes:  1,
		SolicitudesAceptadas:   1,
		SolicitudesRechazadas:  1,
		SolicitudesModificadas: 1,
		StockTotal:             90 + 4 + 0,
		ProductosBajoStock:     2,
	}, *stats)
}
