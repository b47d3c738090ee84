package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnauthorized      = errors.New("invalid credentials")
)

// Entity names used by NotFoundError
const (
	EntityProducto  = "producto"
	EntityTienda    = "tienda"
	EntitySolicitud = "solicitud"
)

// ValidationError is a missing or malformed input field. Message is user facing.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type DuplicateUsernameError struct {
	Username string
}

func (e *DuplicateUsernameError) Error() string {
	return fmt.Sprintf("username %q already exists", e.Username)
}

func (e *DuplicateUsernameError) Is(target error) bool {
	return target == ErrDuplicateUsername
}

// InsufficientStockError lists every line the catalog cannot cover.
type InsufficientStockError struct {
	Shortages []models.Shortage
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		ids[i] = fmt.Sprintf("%d", s.ProductoID)
	}
	return fmt.Sprintf("insufficient stock for products %s", strings.Join(ids, ", "))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type InvalidTransitionError struct {
	ID   int64
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("solicitud %d cannot go from %q to %q", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// validationError converts validator failures, reporting every failed field.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Field()
	}
	return &ValidationError{Fields: fields, Message: message}
}
