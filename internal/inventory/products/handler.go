package products

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts the catalog endpoints. Reads are open to every
// authenticated member; writes go through the management group and the
// service's inventory-privilege check.
func RegisterRoutes(r gin.IRoutes, mgmt gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/templates", h.ListTemplates)
	r.GET("/templates/:id", h.GetTemplate)
	r.GET("/templates/:id/availability", h.Availability)
	r.GET("/templates/:id/units", h.ListUnits)
	r.GET("/units/scan/:code", h.FindUnitByCode)
	r.GET("/units/:id", h.GetUnit)
	r.GET("/units/:id/qr", h.UnitQRLabel)

	mgmt.POST("/templates", h.CreateTemplate)
	mgmt.PUT("/templates/:id", h.UpdateTemplate)
	mgmt.DELETE("/templates/:id", h.DeleteTemplate)
	mgmt.POST("/templates/:id/adjust", h.AdjustQuantity)
	mgmt.POST("/units", h.CreateUnit)
	mgmt.PUT("/units/:id", h.UpdateUnit)
	mgmt.DELETE("/units/:id", h.DeleteUnit)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierr.Respond(c, apierr.Invalid("invalid id"))
		return 0, false
	}
	return id, true
}

func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.FromContext(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthorized("missing principal"))
	}
	return p, ok
}

func (h *Handler) ListTemplates(c *gin.Context) {
	res, err := h.svc.ListTemplates(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetTemplate(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Availability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.TemplateAvailability(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateTemplate(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateTemplate(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTemplate(c.Request.Context(), p, id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdjustQuantity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing delta"))
		return
	}
	res, err := h.svc.AdjustQuantity(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListUnits(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.ListUnits(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetUnit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetUnit(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) FindUnitByCode(c *gin.Context) {
	res, err := h.svc.FindUnitByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UnitQRLabel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	png, err := h.svc.UnitQRLabel(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) CreateUnit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateUnit(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateUnit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateUnit(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteUnit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteUnit(c.Request.Context(), p, id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
