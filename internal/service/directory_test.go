package service

import (
	"testing"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateStore(t *testing.T) {
	f := newFixture(t)

	s, err := f.directory.CreateStore(f.ctx, &CreateStoreInput{Storename: "S1", Username: "s1", Password: "secreto"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.ID)
	assert.True(t, s.Activa)
	assert.False(t, s.FechaCreacion.IsZero())
	assert.NotEqual(t, "secreto", s.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(s.Password), []byte("secreto")))

	public := s.Public()
	assert.Equal(t, "s1", public.Username)
}

func TestCreateStoreRejectsDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.createStore(t, "s1")

	_, err := f.directory.CreateStore(f.ctx, &CreateStoreInput{Storename: "Otra", Username: "s1", Password: "x"})

	var dup *DuplicateUsernameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "s1", dup.Username)

	stores, err := f.directory.ListStores(f.ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 1)
}

func TestCreateStoreValidation(t *testing.T) {
	f := newFixture(t)

	for _, in := range []CreateStoreInput{
		{Username: "u", Password: "p"},
		{Storename: "s", Password: "p"},
		{Storename: "s", Username: "u"},
	} {
		_, err := f.directory.CreateStore(f.ctx, &in)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, msgStoreFieldsRequired, verr.Message)
		assert.Len(t, verr.Fields, 1)
	}
}

func TestStoreIDsDoNotCollideAfterDelete(t *testing.T) {
	f := newFixture(t)
	f.createStore(t, "s1")
	s2 := f.createStore(t, "s2")
	f.createStore(t, "s3")

	// counting stores would hand out 3 again here
	_, err := f.directory.DeleteStore(f.ctx, s2.ID)
	require.NoError(t, err)

	s4 := f.createStore(t, "s4")
	assert.Equal(t, int64(4), s4.ID)

	stores, err := f.directory.ListStores(f.ctx)
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, s := range stores {
		assert.False(t, seen[s.ID], "duplicate id %d", s.ID)
		seen[s.ID] = true
	}
}

func TestDeleteStore(t *testing.T) {
	f := newFixture(t)
	s1 := f.createStore(t, "s1")

	deleted, err := f.directory.DeleteStore(f.ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", deleted.Username)

	_, err = f.directory.DeleteStore(f.ctx, s1.ID)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, EntityTienda, nf.Entity)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	s1 := f.createStore(t, "s1")

	got, err := f.directory.Authenticate(f.ctx, "s1", "p")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, got.ID)

	_, err = f.directory.Authenticate(f.ctx, "s1", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.directory.Authenticate(f.ctx, "nobody", "p")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.directory.Authenticate(f.ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	t.Run("Inactive store", func(t *testing.T) {
		err := f.store.Update(f.ctx, []string{store.Stores}, func(tx *store.Tx) error {
			stores, err := tx.Stores()
			require.NoError(t, err)
			stores[0].Activa = false
			tx.SetStores(stores)
			return nil
		})
		require.NoError(t, err)

		_, err = f.directory.Authenticate(f.ctx, "s1", "p")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestDefaultSeed(t *testing.T) {
	f := newFixture(t)

	seed, err := DefaultSeed(time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Init(f.ctx, seed))

	products, err := f.catalog.ListProducts(f.ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Mermelada de Fresa", products[0].Nombre)
	assert.Equal(t, "3.99", products[0].Precio.String())
	assert.Equal(t, 50, products[1].Cantidad)

	stores, err := f.directory.ListStores(f.ctx)
	require.NoError(t, err)
	require.Len(t, stores, 2)

	got, err := f.directory.Authenticate(f.ctx, "tienda1", "tienda123")
	require.NoError(t, err)
	assert.Equal(t, "Tienda Central", got.Storename)

	// new records continue after the seeded ids
	p := f.createProduct(t, "Nuevo", 1)
	assert.Equal(t, int64(3), p.ID)
	s := f.createStore(t, "tienda3")
	assert.Equal(t, int64(3), s.ID)
}
