package rooms

import (
	"time"

	"gkiportal-backend/internal/lending/status"
)

type CreateRoomRequest struct {
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity"`
	Location string `json:"location"`
}

type UpdateRoomRequest struct {
	Name     *string `json:"name,omitempty"`
	Capacity *int    `json:"capacity,omitempty"`
	Location *string `json:"location,omitempty"`
}

type CreateReservationRequest struct {
	RoomID    int64     `json:"room_id" binding:"required"`
	EventName string    `json:"event_name" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type TransitionRequest struct {
	NewStatus string `json:"new_status" binding:"required"`
}

type RoomResponse struct {
	RoomID    int64     `json:"room_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ReservationResponse struct {
	ReservationID   int64         `json:"reservation_id"`
	ReservationULID string        `json:"reservation_ulid"`
	RoomID          int64         `json:"room_id"`
	RequesterID     string        `json:"requester_id"`
	RequesterName   string        `json:"requester_name,omitempty"`
	EventName       string        `json:"event_name"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Status          status.Status `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

func buildRoomResponse(r *Room) RoomResponse {
	return RoomResponse{
		RoomID:    r.RoomID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Location:  r.Location,
		CreatedAt: r.CreatedAt,
	}
}

func buildReservationResponse(r *Reservation) ReservationResponse {
	return ReservationResponse{
		ReservationID:   r.ReservationID,
		ReservationULID: r.ReservationULID,
		RoomID:          r.RoomID,
		RequesterID:     r.RequesterID,
		RequesterName:   r.RequesterName,
		EventName:       r.EventName,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
	}
}
