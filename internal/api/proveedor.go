package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// supplierLogin checks the console credentials from configuration
func (h *Handler) supplierLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Usuario y contraseña requeridos", err)
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Usuario y contraseña requeridos"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.auth.SupplierUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.auth.SupplierPassword)) == 1
	if !userOK || !passOK {
		h.logger.Warn("Supplier login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Credenciales incorrectas"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Login exitoso",
		"user":      gin.H{"username": req.Username},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Error al obtener productos")
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createProduct(c *gin.Context) {
	var in service.CreateProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Datos de producto inválidos", err)
		return
	}

	product, total, err := h.catalog.CreateProduct(c.Request.Context(), &in)
	if err != nil {
		h.respondError(c, err, "Error al crear producto")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"message":        "Producto creado exitosamente",
		"producto":       product,
		"totalProductos": total,
	})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var in service.UpdateProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Datos de producto inválidos", err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, &in)
	if err != nil {
		h.respondError(c, err, "Error al actualizar producto")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Producto actualizado exitosamente",
		"producto": product,
	})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	product, total, err := h.catalog.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al eliminar producto")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Producto eliminado exitosamente",
		"producto":       product,
		"totalProductos": total,
	})
}

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.directory.ListStores(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Error al obtener tiendas")
		return
	}

	public := make([]models.PublicStore, 0, len(stores))
	for _, s := range stores {
		public = append(public, s.Public())
	}
	c.JSON(http.StatusOK, public)
}

func (h *Handler) createStore(c *gin.Context) {
	var in service.CreateStoreInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Todos los campos son requeridos", err)
		return
	}

	s, err := h.directory.CreateStore(c.Request.Context(), &in)
	if err != nil {
		h.respondError(c, err, "Error al crear tienda")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tienda":  s.Public(),
	})
}

func (h *Handler) deleteStore(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	s, err := h.directory.DeleteStore(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al eliminar tienda")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tienda":  s.Public(),
	})
}

func (h *Handler) listRequests(c *gin.Context) {
	requests, err := h.ledger.ListRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Error al obtener solicitudes")
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) getRequest(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	req, err := h.ledger.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Error al obtener solicitud")
		return
	}
	c.JSON(http.StatusOK, req)
}

// transitionRequest applies the supplier's decision to a request
func (h *Handler) transitionRequest(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var in service.TransitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Datos de solicitud inválidos", err)
		return
	}

	req, err := h.engine.Transition(c.Request.Context(), id, &in)
	if err != nil {
		h.respondError(c, err, "Error al actualizar solicitud")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("Solicitud %s correctamente", req.Estado),
		"solicitud": req,
	})
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Error al obtener estadísticas")
		return
	}
	c.JSON(http.StatusOK, stats)
}
