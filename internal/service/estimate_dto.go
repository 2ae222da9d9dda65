package service

import (
	"time"

	"estimator/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Work DTOs ---

type CreateWorkRequest struct {
	WorkNo      string `json:"work_no" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateWorkRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type WorkResponse struct {
	ID             uuid.UUID         `json:"id"`
	WorkNo         string            `json:"work_no"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	CreatedBy      string            `json:"created_by"`
	ApprovalStatus string            `json:"approval_status"` // draft until first submitted
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	SubWorks       []SubWorkResponse `json:"sub_works,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// --- Sub-work DTOs ---

type SubWorkRequest struct {
	Name string `json:"name" binding:"required"`
}

type SubWorkResponse struct {
	ID          uuid.UUID       `json:"id"`
	WorkID      uuid.UUID       `json:"work_id"`
	SubWorkNo   int             `json:"sub_work_no"`
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []ItemResponse  `json:"items,omitempty"`
}

// --- Item DTOs ---

type CreateItemRequest struct {
	Description          string           `json:"description" binding:"required"`
	Category             string           `json:"category"`
	Unit                 string           `json:"unit"`
	FinalUnit            string           `json:"final_unit"`
	OperationType        string           `json:"operation_type"`
	OperationValue       *decimal.Decimal `json:"operation_value"`
	UnitConversionFactor *decimal.Decimal `json:"unit_conversion_factor"`
}

type UpdateItemRequest struct {
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Unit        *string `json:"unit"`
}

// ItemOperationRequest changes how the summed quantity of an item is adjusted.
type ItemOperationRequest struct {
	OperationType        string           `json:"operation_type" binding:"required"`
	OperationValue       *decimal.Decimal `json:"operation_value"`
	UnitConversionFactor *decimal.Decimal `json:"unit_conversion_factor"`
	FinalUnit            *string          `json:"final_unit"`
}

type ItemResponse struct {
	ID                   uuid.UUID             `json:"id"`
	SubWorkID            uuid.UUID             `json:"sub_work_id"`
	ItemNo               int                   `json:"item_no"`
	Description          string                `json:"description"`
	Category             string                `json:"category"`
	Unit                 string                `json:"unit"`
	OperationType        string                `json:"operation_type"`
	OperationValue       decimal.Decimal       `json:"operation_value"`
	UnitConversionFactor decimal.Decimal       `json:"unit_conversion_factor"`
	FinalUnit            string                `json:"final_unit"`
	TotalQuantity        decimal.Decimal       `json:"total_quantity"`
	FinalQuantity        decimal.Decimal       `json:"final_quantity"`
	TotalAmount          decimal.Decimal       `json:"total_amount"`
	Rates                []RateResponse        `json:"rates"`
	Measurements         []MeasurementResponse `json:"measurements,omitempty"`
}

// --- Rate DTOs ---

// RateRequest also accepts values prefilled from an external rate catalog.
type RateRequest struct {
	Description string          `json:"description" binding:"required"`
	Rate        decimal.Decimal `json:"rate"`
	Unit        string          `json:"unit"`
}

type RateResponse struct {
	ID          uuid.UUID       `json:"id"`
	LineItemID  uuid.UUID       `json:"line_item_id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// --- Response mappers ---

func toWorkResponse(w model.Work, approvalStatus string) WorkResponse {
	res := WorkResponse{
		ID:             w.ID,
		WorkNo:         w.WorkNo,
		Name:           w.Name,
		Description:    w.Description,
		CreatedBy:      w.CreatedBy,
		ApprovalStatus: approvalStatus,
		TotalAmount:    decimal.Zero,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	for _, s := range w.SubWorks {
		res.SubWorks = append(res.SubWorks, toSubWorkResponse(s))
		res.TotalAmount = res.TotalAmount.Add(s.TotalAmount)
	}
	return res
}

func toSubWorkResponse(s model.SubWork) SubWorkResponse {
	res := SubWorkResponse{
		ID:          s.ID,
		WorkID:      s.WorkID,
		SubWorkNo:   s.SubWorkNo,
		Name:        s.Name,
		TotalAmount: s.TotalAmount,
	}
	for _, it := range s.Items {
		res.Items = append(res.Items, toItemResponse(it))
	}
	return res
}

func toItemResponse(it model.LineItem) ItemResponse {
	res := ItemResponse{
		ID:                   it.ID,
		SubWorkID:            it.SubWorkID,
		ItemNo:               it.ItemNo,
		Description:          it.Description,
		Category:             it.Category,
		Unit:                 it.Unit,
		OperationType:        it.OperationType,
		OperationValue:       it.OperationValue,
		UnitConversionFactor: it.UnitConversionFactor,
		FinalUnit:            it.FinalUnit,
		TotalQuantity:        it.TotalQuantity,
		FinalQuantity:        it.FinalQuantity,
		TotalAmount:          it.TotalAmount,
		Rates:                make([]RateResponse, 0, len(it.Rates)),
	}
	for _, r := range it.Rates {
		res.Rates = append(res.Rates, toRateResponse(r))
	}
	for _, m := range it.Measurements {
		res.Measurements = append(res.Measurements, toMeasurementResponse(m))
	}
	return res
}

func toRateResponse(r model.Rate) RateResponse {
	return RateResponse{
		ID:          r.ID,
		LineItemID:  r.LineItemID,
		Position:    r.Position,
		Description: r.Description,
		Rate:        r.Rate,
		Unit:        r.Unit,
		Quantity:    r.Quantity,
		TotalAmount: r.TotalAmount,
	}
}
