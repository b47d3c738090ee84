package api

import (
	"net/http"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/service"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets a store retry a submission without creating a second request
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) storeLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Usuario y contraseña requeridos", err)
		return
	}

	s, err := h.directory.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err, "Error al iniciar sesión")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"store": gin.H{
			"id":        s.ID,
			"storename": s.Storename,
			"username":  s.Username,
		},
	})
}

func (h *Handler) createRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Datos de solicitud inválidos", err)
		return
	}
	in.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	req, err := h.ledger.CreateRequest(c.Request.Context(), &in)
	if err != nil {
		h.respondError(c, err, "Error al crear solicitud")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Solicitud enviada correctamente",
		"solicitud": req,
	})
}

func (h *Handler) listStoreRequests(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	requests, err := h.ledger.ListRequestsByStore(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al obtener solicitudes")
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) listApprovedProducts(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	products, err := h.ledger.ApprovedProducts(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al obtener productos aprobados")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getActivityLog(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	activities, err := h.ledger.ActivityLog(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al obtener registro de actividades")
		return
	}
	c.JSON(http.StatusOK, activities)
}
