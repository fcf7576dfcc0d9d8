package loans

import (
	"time"

	"gkiportal-backend/internal/lending/status"
)

type CreateLoanRequest struct {
	// exactly one of unit_id / template_id
	UnitID     *int64 `json:"unit_id,omitempty"`
	TemplateID *int64 `json:"template_id,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
	// "2006-01-02" dates
	LoanDate string  `json:"loan_date" binding:"required"`
	DueDate  string  `json:"due_date" binding:"required"`
	Note     *string `json:"note,omitempty"`
}

type TransitionRequest struct {
	NewStatus string `json:"new_status" binding:"required"`
}

type LoanResponse struct {
	LoanID     int64         `json:"loan_id"`
	LoanULID   string        `json:"loan_ulid"`
	UnitID     *int64        `json:"unit_id,omitempty"`
	TemplateID *int64        `json:"template_id,omitempty"`
	Quantity   int           `json:"quantity,omitempty"`
	BorrowerID string        `json:"borrower_id"`
	LoanDate   time.Time     `json:"loan_date"`
	DueDate    time.Time     `json:"due_date"`
	ReturnDate *time.Time    `json:"return_date,omitempty"`
	Status     status.Status `json:"status"`
	Note       *string       `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

func buildLoanResponse(l *Loan) LoanResponse {
	resp := LoanResponse{
		LoanID:     l.LoanID,
		LoanULID:   l.LoanULID,
		BorrowerID: l.BorrowerID,
		LoanDate:   l.LoanDate,
		DueDate:    l.DueDate,
		Status:     l.Status,
		CreatedAt:  l.CreatedAt,
	}
	if l.UnitID.Valid {
		v := l.UnitID.Int64
		resp.UnitID = &v
	}
	if l.TemplateID.Valid {
		v := l.TemplateID.Int64
		resp.TemplateID = &v
		resp.Quantity = l.Quantity
	}
	if l.ReturnDate.Valid {
		v := l.ReturnDate.Time
		resp.ReturnDate = &v
	}
	if l.Note.Valid {
		v := l.Note.String
		resp.Note = &v
	}
	return resp
}
