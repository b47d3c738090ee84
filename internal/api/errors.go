package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var notFoundMessages = map[string]string{
	service.EntityProducto:  "Producto no encontrado",
	service.EntityTienda:    "Tienda no encontrada",
	service.EntitySolicitud: "Solicitud no encontrada",
}

// respondError writes the failure envelope for err. Errors outside the
// service taxonomy are logged and reported as fallback with status 500.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	var (
		validationErr *service.ValidationError
		notFoundErr   *service.NotFoundError
		stockErr      *service.InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Message})

	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": notFoundMessages[notFoundErr.Entity]})

	case errors.Is(err, service.ErrDuplicateUsername):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "El usuario ya existe"})

	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":                false,
			"error":                  "Stock insuficiente",
			"productosNoDisponibles": stockErr.Shortages,
		})

	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "La solicitud ya fue procesada", "details": err.Error()})

	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Credenciales incorrectas"})

	default:
		h.logger.Error(fallback,
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": fallback})
	}
}

func (h *Handler) badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"details": err.Error(),
	})
}

// pathID parses the :id parameter, answering 400 when it is not a number
func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "ID inválido", err)
		return 0, false
	}
	return id, true
}
