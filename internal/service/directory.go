package service

import (
	"context"
	"fmt"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

const msgStoreFieldsRequired = "Todos los campos son requeridos"

// DirectoryService manages the stores allowed to place requests
type DirectoryService struct {
	store    *store.Store
	validate *validator.Validate
	logger   *zap.Logger
	hashCost int
	now      func() time.Time
}

// NewDirectoryService creates a new store directory
func NewDirectoryService(st *store.Store) *DirectoryService {
	return &DirectoryService{
		store:    st,
		validate: newValidator(),
		logger:   util.GetLogger(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// CreateStoreInput is the payload for a new store
type CreateStoreInput struct {
	Storename string `json:"storename" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// ListStores returns every store
func (s *DirectoryService) ListStores(ctx context.Context) ([]models.Store, error) {
	ctx, span := util.StartSpan(ctx, "DirectoryService.ListStores")
	defer span.End()

	var stores []models.Store
	err := s.store.View(ctx, []string{store.Stores}, func(tx *store.Tx) error {
		var err error
		stores, err = tx.Stores()
		return err
	})
	if err != nil {
		return nil, err
	}
	return stores, nil
}

// CreateStore registers a store. Usernames are unique and passwords are stored as bcrypt hashes.
func (s *DirectoryService) CreateStore(ctx context.Context, in *CreateStoreInput) (*models.Store, error) {
	ctx, span := util.StartSpan(ctx, "DirectoryService.CreateStore")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err, msgStoreFieldsRequired)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created models.Store
	err = s.store.Update(ctx, []string{store.Stores, store.Sequences}, func(tx *store.Tx) error {
		stores, err := tx.Stores()
		if err != nil {
			return err
		}

		for _, existing := range stores {
			if existing.Username == in.Username {
				return &DuplicateUsernameError{Username: in.Username}
			}
		}

		id, err := assignID(tx, store.Stores, stores, storeID)
		if err != nil {
			return err
		}

		created = models.Store{
			ID:            id,
			Storename:     in.Storename,
			Username:      in.Username,
			Password:      string(hash),
			FechaCreacion: s.now(),
			Activa:        true,
		}

		tx.SetStores(append(stores, created))
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.StoresCreatedTotal.Inc()
	s.logger.Info("Store created",
		zap.Int64("tienda_id", created.ID),
		zap.String("username", created.Username))

	return &created, nil
}

// DeleteStore removes a store. Its requests keep their tiendaNombre snapshot.
func (s *DirectoryService) DeleteStore(ctx context.Context, id int64) (*models.Store, error) {
	ctx, span := util.StartSpan(ctx, "DirectoryService.DeleteStore")
	defer span.End()

	var deleted models.Store
	err := s.store.Update(ctx, []string{store.Stores}, func(tx *store.Tx) error {
		stores, err := tx.Stores()
		if err != nil {
			return err
		}

		idx := findStore(stores, id)
		if idx < 0 {
			return &NotFoundError{Entity: EntityTienda, ID: id}
		}

		deleted = stores[idx]
		tx.SetStores(append(stores[:idx], stores[idx+1:]...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Store deleted", zap.Int64("tienda_id", id))
	return &deleted, nil
}

// Authenticate returns the active store matching the credentials
func (s *DirectoryService) Authenticate(ctx context.Context, username, password string) (*models.Store, error) {
	ctx, span := util.StartSpan(ctx, "DirectoryService.Authenticate")
	defer span.End()

	if username == "" || password == "" {
		return nil, &ValidationError{Fields: []string{"username", "password"}, Message: "Usuario y contraseña requeridos"}
	}

	var found *models.Store
	err := s.store.View(ctx, []string{store.Stores}, func(tx *store.Tx) error {
		stores, err := tx.Stores()
		if err != nil {
			return err
		}
		for i := range stores {
			if stores[i].Username == username && stores[i].Activa {
				st := stores[i]
				found = &st
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil || bcrypt.CompareHashAndPassword([]byte(found.Password), []byte(password)) != nil {
		s.logger.Info("Store login failed", zap.String("username", username))
		return nil, ErrUnauthorized
	}
	return found, nil
}

func findStore(stores []models.Store, id int64) int {
	for i := range stores {
		if stores[i].ID == id {
			return i
		}
	}
	return -1
}

func storeID(s models.Store) int64 { return s.ID }
