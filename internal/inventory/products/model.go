package products

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// UnitStatus is the physical state of one serialized unit.
type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitBorrowed    UnitStatus = "borrowed"
	UnitMaintenance UnitStatus = "maintenance"
	UnitScrapped    UnitStatus = "scrapped"
	UnitLost        UnitStatus = "lost"
)

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitAvailable, UnitBorrowed, UnitMaintenance, UnitScrapped, UnitLost:
		return true
	}
	return false
}

// Template is one catalog entry. For serialized templates QuantityOnHand
// is not authoritative; stock is derived from the unit rows.
type Template struct {
	TemplateID     int64
	Name           string
	CategoryID     int64
	Location       string
	Unit           string
	IsSerialized   bool
	QuantityOnHand int
	MinQuantity    int
	CreatedAt      time.Time
}

// Unit is one physically distinct instance of a serialized template.
type Unit struct {
	UnitID        int64
	TemplateID    int64
	SerialNumber  sql.NullString
	AssetCode     sql.NullString
	Status        UnitStatus
	Location      sql.NullString
	PurchasedAt   sql.NullTime
	PurchasePrice decimal.NullDecimal
	CreatedAt     time.Time
}

// Code returns the scannable identifier printed on the unit's label.
func (u *Unit) Code() string {
	if u.AssetCode.Valid && u.AssetCode.String != "" {
		return u.AssetCode.String
	}
	if u.SerialNumber.Valid {
		return u.SerialNumber.String
	}
	return ""
}

// Availability is the computed stock view of one template.
type Availability struct {
	TemplateID   int64  `json:"template_id"`
	Name         string `json:"name"`
	IsSerialized bool   `json:"is_serialized"`
	Available    int    `json:"available"`
	Borrowed     int    `json:"borrowed"`
	Maintenance  int    `json:"maintenance,omitempty"`
	Scrapped     int    `json:"scrapped,omitempty"`
	Lost         int    `json:"lost,omitempty"`
	Total        int    `json:"total"`
	// bulk only
	QuantityOnHand int `json:"quantity_on_hand,omitempty"`
	BorrowedQty    int `json:"borrowed_qty,omitempty"`
}
