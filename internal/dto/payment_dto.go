package dto

import (
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// PaymentIntentRequest opens a processor intent for an application.
type PaymentIntentRequest struct {
	ApplicationID uint `json:"application_id" validate:"required"`
}

// PaymentIntentResponse returns what the client needs to complete payment.
type PaymentIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// PaymentConfirmRequest accepts an application once its intent succeeded.
type PaymentConfirmRequest struct {
	ApplicationID   uint   `json:"application_id" validate:"required"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
}

// PaymentResponse is the serialized payment.
type PaymentResponse struct {
	ID            uint            `json:"id"`
	TuitionID     uint            `json:"tuition_id"`
	ApplicationID uint            `json:"application_id"`
	StudentID     uint            `json:"student_id"`
	TutorID       uint            `json:"tutor_id"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	PlatformFee   int64           `json:"platform_fee"`
	TutorReceives int64           `json:"tutor_receives"`
	Description   string          `json:"description"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	RefundAmount  int64           `json:"refund_amount,omitempty"`
	RefundReason  string          `json:"refund_reason,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	Tuition       *TuitionSummary `json:"tuition,omitempty"`
	Student       *UserSummary    `json:"student,omitempty"`
	Tutor         *UserSummary    `json:"tutor,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentListResponse wraps a page of payments.
type PaymentListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// StudentPaymentsResponse lists a student's payments with the amount spent.
type StudentPaymentsResponse struct {
	Items      []PaymentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
	TotalSpent int64             `json:"total_spent"`
}

// TutorRevenueResponse lists a tutor's payments with earnings totals.
type TutorRevenueResponse struct {
	Items        []PaymentResponse `json:"items"`
	Pagination   PaginationMeta    `json:"pagination"`
	TotalRevenue int64             `json:"total_revenue"`
	PlatformFees int64             `json:"platform_fees"`
	Gross        int64             `json:"gross"`
}

// AcceptanceResponse is returned once a payment confirmed an acceptance.
type AcceptanceResponse struct {
	Payment          PaymentResponse     `json:"payment"`
	Application      ApplicationResponse `json:"application"`
	RejectedSiblings int                 `json:"rejected_applications"`
}

// NewPaymentResponse converts a payment model into a DTO.
func NewPaymentResponse(model models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            model.ID,
		TuitionID:     model.TuitionID,
		ApplicationID: model.ApplicationID,
		StudentID:     model.StudentID,
		TutorID:       model.TutorID,
		Amount:        model.Amount,
		Currency:      model.Currency,
		PaymentMethod: model.PaymentMethod,
		TransactionID: model.TransactionID,
		Status:        model.Status,
		PlatformFee:   model.PlatformFee,
		TutorReceives: model.TutorReceives,
		Description:   model.Description,
		CompletedAt:   model.CompletedAt,
		RefundAmount:  model.RefundAmount,
		RefundReason:  model.RefundReason,
		RefundedAt:    model.RefundedAt,
		Tuition:       NewTuitionSummary(model.Tuition),
		Student:       NewUserSummary(model.Student),
		Tutor:         NewUserSummary(model.Tutor),
		CreatedAt:     model.CreatedAt,
	}
}

// NewPaymentResponseSlice converts payments into DTOs.
func NewPaymentResponseSlice(payments []models.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		responses = append(responses, NewPaymentResponse(payment))
	}
	return responses
}
