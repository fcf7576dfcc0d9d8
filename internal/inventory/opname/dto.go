package opname

import "time"

type StartRequest struct {
	Title string `json:"title" binding:"required"`
}

type SubmitCountRequest struct {
	TemplateID int64  `json:"template_id" binding:"required"`
	UnitID     *int64 `json:"unit_id"`
	// counted quantity for bulk templates; ignored for unit scans
	Quantity int `json:"quantity"`
}

type SessionResponse struct {
	OpnameID    int64      `json:"opname_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ItemResponse struct {
	ItemID      int64     `json:"item_id"`
	OpnameID    int64     `json:"opname_id"`
	TemplateID  int64     `json:"template_id"`
	UnitID      *int64    `json:"unit_id,omitempty"`
	SystemQty   int       `json:"system_qty"`
	ActualQty   int       `json:"actual_qty"`
	Discrepancy int       `json:"discrepancy"`
	CheckedBy   string    `json:"checked_by"`
	CheckedAt   time.Time `json:"checked_at"`
}

type ItemDetailResponse struct {
	ItemResponse
	TemplateName string `json:"template_name"`
	CategoryName string `json:"category_name"`
	UnitCode     string `json:"unit_code,omitempty"`
	CheckerName  string `json:"checker_name,omitempty"`
}

type SessionDetailResponse struct {
	SessionResponse
	Items []ItemDetailResponse `json:"items"`
}

func buildSessionResponse(s *Session) SessionResponse {
	resp := SessionResponse{
		OpnameID:  s.OpnameID,
		Title:     s.Title,
		Status:    string(s.Status),
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt,
	}
	if s.CompletedAt.Valid {
		t := s.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func buildItemResponse(it *Item) ItemResponse {
	resp := ItemResponse{
		ItemID:      it.ItemID,
		OpnameID:    it.OpnameID,
		TemplateID:  it.TemplateID,
		SystemQty:   it.SystemQty,
		ActualQty:   it.ActualQty,
		Discrepancy: it.ActualQty - it.SystemQty,
		CheckedBy:   it.CheckedBy,
		CheckedAt:   it.CheckedAt,
	}
	if it.UnitID.Valid {
		id := it.UnitID.Int64
		resp.UnitID = &id
	}
	return resp
}

func buildItemDetailResponse(d *ItemDetail) ItemDetailResponse {
	resp := ItemDetailResponse{
		ItemResponse: buildItemResponse(&d.Item),
		TemplateName: d.TemplateName,
		CategoryName: d.CategoryName,
	}
	if d.UnitCode.Valid {
		resp.UnitCode = d.UnitCode.String
	}
	if d.CheckerName.Valid {
		resp.CheckerName = d.CheckerName.String
	}
	return resp
}
