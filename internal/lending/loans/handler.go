package loans

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, mgmt gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/loans", h.CreateLoan)
	r.GET("/loans/mine", h.MyLoans)
	r.POST("/loans/:id/cancel", h.Cancel)

	mgmt.GET("/loans", h.ListLoans)
	mgmt.GET("/loans/pending", h.PendingLoans)
	mgmt.GET("/loans/:id", h.GetLoan)
	mgmt.POST("/loans/:id/transition", h.Transition)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierr.Respond(c, apierr.Invalid("invalid id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) CreateLoan(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthorized("missing principal"))
		return
	}
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateLoan(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Location", "/loans/"+res.LoanULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) MyLoans(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthorized("missing principal"))
		return
	}
	res, err := h.svc.MyLoans(c.Request.Context(), p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthorized("missing principal"))
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), p, id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "request cancelled"})
}

func (h *Handler) ListLoans(c *gin.Context) {
	f := LoanFilter{}
	if v := c.Query("borrower_id"); v != "" {
		f.BorrowerID = &v
	}
	if v := c.Query("unreturned"); v == "true" || v == "1" {
		f.UnreturnedOnly = true
	}
	res, err := h.svc.ListLoans(c.Request.Context(), f)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PendingLoans(c *gin.Context) {
	res, err := h.svc.PendingLoans(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetLoan(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Transition(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthorized("missing principal"))
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing new_status"))
		return
	}
	res, err := h.svc.Transition(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
