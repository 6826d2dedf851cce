package models

import "time"

// Payment statuses.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

// PaymentMethodStripe marks card payments confirmed through Stripe.
const PaymentMethodStripe = "stripe"

// DefaultCurrency is used when a payment does not specify one.
const DefaultCurrency = "BDT"

// PlatformFeePercent is the share withheld from every payment.
const PlatformFeePercent = 10

// Payment records one completed transaction for an accepted application.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TuitionID     uint       `gorm:"not null;index" json:"tuition_id"`
	ApplicationID uint       `gorm:"not null;index" json:"application_id"`
	StudentID     uint       `gorm:"not null;index" json:"student_id"`
	TutorID       uint       `gorm:"not null;index" json:"tutor_id"`
	Amount        int64      `gorm:"not null" json:"amount"`
	Currency      string     `gorm:"size:8;not null;default:BDT" json:"currency"`
	PaymentMethod string     `gorm:"size:32;not null;default:stripe" json:"payment_method"`
	TransactionID string     `gorm:"size:255;not null;uniqueIndex" json:"transaction_id"`
	Status        string     `gorm:"size:16;not null;index;default:pending" json:"status"`
	PlatformFee   int64      `gorm:"not null;default:0" json:"platform_fee"`
	TutorReceives int64      `gorm:"not null;default:0" json:"tutor_receives"`
	Description   string     `gorm:"type:text" json:"description"`
	CompletedAt   *time.Time `json:"completed_at"`
	RefundAmount  int64      `gorm:"not null;default:0" json:"refund_amount"`
	RefundReason  string     `gorm:"type:text" json:"refund_reason"`
	RefundedAt    *time.Time `json:"refunded_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Tuition       *Tuition   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"tuition,omitempty"`
	Student       *User      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Tutor         *User      `gorm:"foreignKey:TutorID" json:"tutor,omitempty"`
}

// SplitPlatformFee returns the platform fee and tutor share for amount.
// The fee is amount*10% rounded half up, so fee+share always equals amount.
func SplitPlatformFee(amount int64) (fee int64, tutorReceives int64) {
	if amount <= 0 {
		return 0, amount
	}
	fee = (amount*PlatformFeePercent + 50) / 100
	return fee, amount - fee
}
