package opname

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(mgmt gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	mgmt.POST("/opnames", h.Start)
	mgmt.GET("/opnames", h.History)
	mgmt.GET("/opnames/ongoing", h.Ongoing)
	mgmt.GET("/opnames/:id", h.Detail)
	mgmt.POST("/opnames/:id/items", h.SubmitCount)
	mgmt.POST("/opnames/:id/complete", h.Complete)
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

func (h *Handler) Start(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing title"))
		return
	}
	res, err := h.svc.Start(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) SubmitCount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SubmitCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing template_id"))
		return
	}
	res, err := h.svc.SubmitCount(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Complete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.Complete(c.Request.Context(), p, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c *gin.Context) {
	res, err := h.svc.History(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Ongoing(c *gin.Context) {
	res, err := h.svc.Ongoing(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
