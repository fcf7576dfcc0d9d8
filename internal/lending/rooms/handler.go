package rooms

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

	r.GET("/rooms", h.ListRooms)
	r.GET("/rooms/:id/schedule", h.RoomSchedule)
	r.POST("/reservations", h.CreateReservation)
	r.GET("/reservations/mine", h.MyReservations)
	r.POST("/reservations/:id/cancel", h.Cancel)

	mgmt.POST("/rooms", h.CreateRoom)
	mgmt.PUT("/rooms/:id", h.UpdateRoom)
	mgmt.DELETE("/rooms/:id", h.DeleteRoom)
	mgmt.GET("/reservations", h.ListReservations)
	mgmt.GET("/reservations/pending", h.PendingReservations)
	mgmt.POST("/reservations/:id/transition", h.Transition)
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

func (h *Handler) ListRooms(c *gin.Context) {
	res, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RoomSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.RoomSchedule(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateRoom(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateRoom(c.Request.Context(), p, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRoom(c.Request.Context(), p, id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateReservation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateReservation(c.Request.Context(), p, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Location", "/reservations/"+res.ReservationULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) MyReservations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	res, err := h.svc.MyReservations(c.Request.Context(), p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
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

func (h *Handler) ListReservations(c *gin.Context) {
	f := ReservationFilter{}
	if v := c.Query("room_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.RoomID = &id
		}
	}
	if v := c.Query("requester_id"); v != "" {
		f.RequesterID = &v
	}
	res, err := h.svc.ListReservations(c.Request.Context(), f)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PendingReservations(c *gin.Context) {
	res, err := h.svc.PendingReservations(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Transition(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
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
