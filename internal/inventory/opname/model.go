package opname

import (
	"database/sql"
	"time"
)

// SessionStatus is the lifecycle state of one audit session.
type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// Session is one bounded stock-count audit. At most one session may be
// ongoing system-wide; the store enforces this with a unique index.
type Session struct {
	OpnameID    int64
	Title       string
	Status      SessionStatus
	CreatedBy   string
	CreatedAt   time.Time
	CompletedAt sql.NullTime
}

// Item is one counted line inside a session. UnitID is set for serialized
// scans and null for bulk counts; per session there is exactly one row per
// (template, unit) key.
type Item struct {
	ItemID     int64
	OpnameID   int64
	TemplateID int64
	UnitID     sql.NullInt64
	SystemQty  int
	ActualQty  int
	CheckedBy  string
	CheckedAt  time.Time
}

// ItemDetail is the read projection of an item joined to its template,
// unit and checker.
type ItemDetail struct {
	Item
	TemplateName string
	CategoryName string
	UnitCode     sql.NullString
	CheckerName  sql.NullString
}
