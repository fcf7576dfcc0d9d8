package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// ===== Requests =====

type CreateTemplateRequest struct {
	Name         string `json:"name" binding:"required"`
	CategoryID   int64  `json:"category_id" binding:"required"`
	Location     string `json:"location" binding:"required"`
	Unit         string `json:"unit" binding:"required"`
	IsSerialized bool   `json:"is_serialized"`
	// ignored for serialized templates
	QuantityOnHand int `json:"quantity_on_hand"`
	MinQuantity    int `json:"min_quantity"`
}

type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Location    *string `json:"location,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	MinQuantity *int    `json:"min_quantity,omitempty"`
}

type AdjustQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type CreateUnitRequest struct {
	TemplateID    int64            `json:"template_id" binding:"required"`
	SerialNumber  *string          `json:"serial_number,omitempty"`
	AssetCode     *string          `json:"asset_code,omitempty"`
	Location      *string          `json:"location,omitempty"`
	PurchasedAt   *time.Time       `json:"purchased_at,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
}

type UpdateUnitRequest struct {
	SerialNumber  *string          `json:"serial_number,omitempty"`
	AssetCode     *string          `json:"asset_code,omitempty"`
	Status        *string          `json:"status,omitempty"`
	Location      *string          `json:"location,omitempty"`
	PurchasedAt   *time.Time       `json:"purchased_at,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
}

// ===== Responses =====

type TemplateResponse struct {
	TemplateID     int64     `json:"template_id"`
	Name           string    `json:"name"`
	CategoryID     int64     `json:"category_id"`
	Location       string    `json:"location"`
	Unit           string    `json:"unit"`
	IsSerialized   bool      `json:"is_serialized"`
	QuantityOnHand int       `json:"quantity_on_hand"`
	MinQuantity    int       `json:"min_quantity"`
	CreatedAt      time.Time `json:"created_at"`
}

type UnitResponse struct {
	UnitID        int64            `json:"unit_id"`
	TemplateID    int64            `json:"template_id"`
	SerialNumber  *string          `json:"serial_number,omitempty"`
	AssetCode     *string          `json:"asset_code,omitempty"`
	Status        UnitStatus       `json:"status"`
	Location      *string          `json:"location,omitempty"`
	PurchasedAt   *time.Time       `json:"purchased_at,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func buildTemplateResponse(t *Template) TemplateResponse {
	return TemplateResponse{
		TemplateID:     t.TemplateID,
		Name:           t.Name,
		CategoryID:     t.CategoryID,
		Location:       t.Location,
		Unit:           t.Unit,
		IsSerialized:   t.IsSerialized,
		QuantityOnHand: t.QuantityOnHand,
		MinQuantity:    t.MinQuantity,
		CreatedAt:      t.CreatedAt,
	}
}

func buildUnitResponse(u *Unit) UnitResponse {
	resp := UnitResponse{
		UnitID:     u.UnitID,
		TemplateID: u.TemplateID,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
	}
	if u.SerialNumber.Valid {
		v := u.SerialNumber.String
		resp.SerialNumber = &v
	}
	if u.AssetCode.Valid {
		v := u.AssetCode.String
		resp.AssetCode = &v
	}
	if u.Location.Valid {
		v := u.Location.String
		resp.Location = &v
	}
	if u.PurchasedAt.Valid {
		v := u.PurchasedAt.Time
		resp.PurchasedAt = &v
	}
	if u.PurchasePrice.Valid {
		v := u.PurchasePrice.Decimal
		resp.PurchasePrice = &v
	}
	return resp
}
