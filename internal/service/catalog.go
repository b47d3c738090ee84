package service

import (
	"context"
	"fmt"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const msgProductFieldsRequired = "Faltan campos requeridos: nombre, precio, cantidad, categoria, unidad"

// CatalogService manages the product catalog
type CatalogService struct {
	store    *store.Store
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService creates a new catalog service
func NewCatalogService(st *store.Store) *CatalogService {
	return &CatalogService{
		store:    st,
		validate: newValidator(),
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// CreateProductInput is the payload for a new product
type CreateProductInput struct {
	Nombre      string           `json:"nombre" validate:"required"`
	Descripcion string           `json:"descripcion"`
	Precio      *decimal.Decimal `json:"precio" validate:"required"`
	Cantidad    *FlexInt         `json:"cantidad" validate:"required"`
	Categoria   string           `json:"categoria" validate:"required"`
	Unidad      string           `json:"unidad" validate:"required"`
}

// UpdateProductInput holds the fields to overwrite. Nil fields are kept.
type UpdateProductInput struct {
	Nombre      *string          `json:"nombre"`
	Descripcion *string          `json:"descripcion"`
	Precio      *decimal.Decimal `json:"precio"`
	Cantidad    *FlexInt         `json:"cantidad"`
	Categoria   *string          `json:"categoria"`
	Unidad      *string          `json:"unidad"`
}

// ListProducts returns the whole catalog
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	var products []models.Product
	err := s.store.View(ctx, []string{store.Products}, func(tx *store.Tx) error {
		var err error
		products, err = tx.Products()
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct validates and appends a product, returning it and the new catalog size
func (s *CatalogService) CreateProduct(ctx context.Context, in *CreateProductInput) (*models.Product, int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, 0, validationError(err, msgProductFieldsRequired)
	}
	if err := checkNonNegative(in.Precio, in.Cantidad); err != nil {
		return nil, 0, err
	}

	var created models.Product
	var total int
	err := s.store.Update(ctx, []string{store.Products, store.Sequences}, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}
		id, err := assignID(tx, store.Products, products, productID)
		if err != nil {
			return err
		}

		created = models.Product{
			ID:          id,
			Nombre:      in.Nombre,
			Descripcion: in.Descripcion,
			Precio:      *in.Precio,
			Cantidad:    int(*in.Cantidad),
			Categoria:   in.Categoria,
			Unidad:      in.Unidad,
			Fecha:       s.now(),
		}
		products = append(products, created)
		total = len(products)

		tx.SetProducts(products)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("producto_id", created.ID),
		zap.String("nombre", created.Nombre))

	return &created, total, nil
}

// UpdateProduct merges the given fields onto an existing product. The id never changes.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in *UpdateProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	for field, v := range map[string]*string{
		"nombre":    in.Nombre,
		"categoria": in.Categoria,
		"unidad":    in.Unidad,
	} {
		if v != nil && *v == "" {
			return nil, &ValidationError{Fields: []string{field}, Message: fmt.Sprintf("El campo %s no puede estar vacío", field)}
		}
	}
	if err := checkNonNegative(in.Precio, in.Cantidad); err != nil {
		return nil, err
	}

	var updated models.Product
	err := s.store.Update(ctx, []string{store.Products}, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}

		idx := findProduct(products, id)
		if idx < 0 {
			return &NotFoundError{Entity: EntityProducto, ID: id}
		}

		p := &products[idx]
		if in.Nombre != nil {
			p.Nombre = *in.Nombre
		}
		if in.Descripcion != nil {
			p.Descripcion = *in.Descripcion
		}
		if in.Precio != nil {
			p.Precio = *in.Precio
		}
		if in.Cantidad != nil {
			p.Cantidad = int(*in.Cantidad)
		}
		if in.Categoria != nil {
			p.Categoria = *in.Categoria
		}
		if in.Unidad != nil {
			p.Unidad = *in.Unidad
		}
		updated = *p

		tx.SetProducts(products)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.Int64("producto_id", id))
	return &updated, nil
}

// DeleteProduct removes a product, returning it and the new catalog size.
// Requests that reference it are left untouched.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) (*models.Product, int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	var deleted models.Product
	var total int
	err := s.store.Update(ctx, []string{store.Products}, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}

		idx := findProduct(products, id)
		if idx < 0 {
			return &NotFoundError{Entity: EntityProducto, ID: id}
		}

		deleted = products[idx]
		products = append(products[:idx], products[idx+1:]...)
		total = len(products)

		tx.SetProducts(products)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("Product deleted", zap.Int64("producto_id", id))
	return &deleted, total, nil
}

// DecrementStock removes amount units from a product in one cycle and records a salida movement
func (s *CatalogService) DecrementStock(ctx context.Context, id int64, amount int, destino string, solicitudID int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DecrementStock")
	defer span.End()

	if amount <= 0 {
		return nil, &ValidationError{Fields: []string{"cantidad"}, Message: "La cantidad debe ser mayor que cero"}
	}

	var updated models.Product
	err := s.store.Update(ctx, []string{store.Products}, func(tx *store.Tx) error {
		products, err := tx.Products()
		if err != nil {
			return err
		}

		idx := findProduct(products, id)
		if idx < 0 {
			return &NotFoundError{Entity: EntityProducto, ID: id}
		}

		p := &products[idx]
		if err := withdrawStock(p, amount, destino, solicitudID, s.now()); err != nil {
			return err
		}
		updated = *p

		tx.SetProducts(products)
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.StockUnitsMovedTotal.WithLabelValues(models.MovementSalida).Add(float64(amount))
	return &updated, nil
}

// withdrawStock takes amount units out of p with a salida movement inside the
// caller's cycle. p is left untouched when it holds fewer units.
func withdrawStock(p *models.Product, amount int, destino string, solicitudID int64, at time.Time) error {
	if p.Cantidad < amount {
		return &InsufficientStockError{Shortages: []models.Shortage{{
			ProductoID:         p.ID,
			ProductoNombre:     p.Nombre,
			CantidadSolicitada: amount,
			CantidadDisponible: p.Cantidad,
			Motivo:             motivoStockInsuficiente,
		}}}
	}
	moveStock(p, models.MovementSalida, amount, destino, solicitudID, at)
	return nil
}

// moveStock applies a movement to p. Salidas go through withdrawStock.
func moveStock(p *models.Product, tipo string, amount int, destino string, solicitudID int64, at time.Time) {
	if tipo == models.MovementSalida {
		p.Cantidad -= amount
	} else {
		p.Cantidad += amount
	}

	p.Movimientos = append(p.Movimientos, models.Movement{
		Tipo:        tipo,
		Cantidad:    amount,
		Fecha:       at,
		Destino:     destino,
		SolicitudID: solicitudID,
	})
}

func checkNonNegative(precio *decimal.Decimal, cantidad *FlexInt) error {
	if precio != nil && precio.IsNegative() {
		return &ValidationError{Fields: []string{"precio"}, Message: "El precio no puede ser negativo"}
	}
	if cantidad != nil && *cantidad < 0 {
		return &ValidationError{Fields: []string{"cantidad"}, Message: "La cantidad no puede ser negativa"}
	}
	return nil
}

func findProduct(products []models.Product, id int64) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func productID(p models.Product) int64 { return p.ID }
