package service

import (
	"fmt"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSeed is the starter catalog and store list written when the collections do not exist yet
func DefaultSeed(now time.Time) (*store.Seed, error) {
	seedStores := []struct {
		storename, username, password string
	}{
		{"Tienda Central", "tienda1", "tienda123"},
		{"Supermercado Norte", "tienda2", "tienda456"},
	}

	stores := make([]models.Store, 0, len(seedStores))
	for i, s := range seedStores {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash seed password: %w", err)
		}
		stores = append(stores, models.Store{
			ID:            int64(i + 1),
			Storename:     s.storename,
			Username:      s.username,
			Password:      string(hash),
			FechaCreacion: now,
			Activa:        true,
		})
	}

	products := []models.Product{
		{
			ID:          1,
			Nombre:      "Mermelada de Fresa",
			Descripcion: "Mermelada artesanal 250g",
			Precio:      decimal.RequireFromString("3.99"),
			Cantidad:    100,
			Categoria:   "confituras",
			Unidad:      "frasco",
			Fecha:       now,
		},
		{
			ID:          2,
			Nombre:      "Miel de Abeja Pura",
			Descripcion: "Miel 100% natural 500g",
			Precio:      decimal.RequireFromString("8.50"),
			Cantidad:    50,
			Categoria:   "endulzantes",
			Unidad:      "frasco",
			Fecha:       now,
		},
	}

	return &store.Seed{
		Products: products,
		Stores:   stores,
		Requests: []models.Request{},
	}, nil
}
