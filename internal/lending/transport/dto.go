package transport

import (
	"time"

	"gkiportal-backend/internal/lending/status"
)

type CreateVehicleRequest struct {
	Name             string  `json:"name" binding:"required"`
	PlateNumber      *string `json:"plate_number,omitempty"`
	Capacity         int     `json:"capacity"`
	PersonInChargeID *string `json:"person_in_charge_id,omitempty"`
}

type UpdateVehicleRequest struct {
	Name             *string `json:"name,omitempty"`
	PlateNumber      *string `json:"plate_number,omitempty"`
	Capacity         *int    `json:"capacity,omitempty"`
	PersonInChargeID *string `json:"person_in_charge_id,omitempty"`
}

type CreateLoanRequest struct {
	VehicleID       int64     `json:"vehicle_id" binding:"required"`
	BorrowStart     time.Time `json:"borrow_start" binding:"required"`
	BorrowEnd       time.Time `json:"borrow_end" binding:"required"`
	Purpose         *string   `json:"purpose,omitempty"`
	Origin          *string   `json:"origin,omitempty"`
	Destination     *string   `json:"destination,omitempty"`
	PassengersCount *int64    `json:"passengers_count,omitempty"`
}

type TransitionRequest struct {
	NewStatus string `json:"new_status" binding:"required"`
}

type VehicleResponse struct {
	VehicleID        int64     `json:"vehicle_id"`
	Name             string    `json:"name"`
	PlateNumber      *string   `json:"plate_number,omitempty"`
	Capacity         int       `json:"capacity"`
	PersonInChargeID *string   `json:"person_in_charge_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type LoanResponse struct {
	LoanID          int64         `json:"loan_id"`
	LoanULID        string        `json:"loan_ulid"`
	VehicleID       int64         `json:"vehicle_id"`
	BorrowerID      string        `json:"borrower_id"`
	BorrowerName    string        `json:"borrower_name,omitempty"`
	BorrowStart     time.Time     `json:"borrow_start"`
	BorrowEnd       time.Time     `json:"borrow_end"`
	Purpose         *string       `json:"purpose,omitempty"`
	Origin          *string       `json:"origin,omitempty"`
	Destination     *string       `json:"destination,omitempty"`
	PassengersCount *int64        `json:"passengers_count,omitempty"`
	Status          status.Status `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

func buildVehicleResponse(v *Vehicle) VehicleResponse {
	resp := VehicleResponse{
		VehicleID: v.VehicleID,
		Name:      v.Name,
		Capacity:  v.Capacity,
		CreatedAt: v.CreatedAt,
	}
	if v.PlateNumber.Valid {
		s := v.PlateNumber.String
		resp.PlateNumber = &s
	}
	if v.PersonInChargeID.Valid {
		s := v.PersonInChargeID.String
		resp.PersonInChargeID = &s
	}
	return resp
}

func buildLoanResponse(l *TransportLoan) LoanResponse {
	resp := LoanResponse{
		LoanID:       l.LoanID,
		LoanULID:     l.LoanULID,
		VehicleID:    l.VehicleID,
		BorrowerID:   l.BorrowerID,
		BorrowerName: l.BorrowerName,
		BorrowStart:  l.BorrowStart,
		BorrowEnd:    l.BorrowEnd,
		Status:       l.Status,
		CreatedAt:    l.CreatedAt,
	}
	if l.Purpose.Valid {
		s := l.Purpose.String
		resp.Purpose = &s
	}
	if l.Origin.Valid {
		s := l.Origin.String
		resp.Origin = &s
	}
	if l.Destination.Valid {
		s := l.Destination.String
		resp.Destination = &s
	}
	if l.PassengersCount.Valid {
		n := l.PassengersCount.Int64
		resp.PassengersCount = &n
	}
	return resp
}
