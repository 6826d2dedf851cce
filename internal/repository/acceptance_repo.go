package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// ErrApplicationNotPending reports that the target application was decided
// before the acceptance transaction reached it.
var ErrApplicationNotPending = errors.New("application is no longer pending")

// AcceptanceInput carries everything the acceptance transaction writes.
type AcceptanceInput struct {
	Payment       *models.Payment
	ApplicationID uint
	TuitionID     uint
	TutorID       uint
	At            time.Time
}

// AcceptanceResult lists the applications closed out by an acceptance.
type AcceptanceResult struct {
	RejectedSiblings []models.Application
}

// RefundInput describes a refund reversal.
type RefundInput struct {
	PaymentID uint
	Amount    int64
	Reason    string
	At        time.Time
}

// RefundResult reports what a refund reversal reopened.
type RefundResult struct {
	Payment           models.Payment
	ReopenedSiblings  int64
	ReopenedTuitionID uint
}

// AcceptanceRepository performs the multi-row writes of payment-confirmed
// acceptance and its refund reversal, each in one transaction.
type AcceptanceRepository interface {
	Accept(ctx context.Context, input AcceptanceInput) (AcceptanceResult, error)
	Refund(ctx context.Context, input RefundInput) (RefundResult, error)
}

type acceptanceRepository struct {
	db *gorm.DB
}

// NewAcceptanceRepository constructs the transactional acceptance repository.
func NewAcceptanceRepository(db *gorm.DB) AcceptanceRepository {
	return &acceptanceRepository{db: db}
}

// Accept records the payment, claims the tuition, accepts the application,
// rejects pending siblings and credits the tutor. The tuition claim runs
// before any application write so concurrent acceptances queue on the
// tuition row and the loser observes ErrTuitionUnavailable.
func (r *acceptanceRepository) Accept(ctx context.Context, input AcceptanceInput) (AcceptanceResult, error) {
	var result AcceptanceResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(input.Payment).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}

		claim := tx.Model(&models.Tuition{}).
			Where("id = ? AND status = ? AND approval_status = ?", input.TuitionID, models.TuitionStatusOpen, models.ApprovalStatusApproved).
			Updates(map[string]interface{}{
				"status":            models.TuitionStatusOngoing,
				"approved_tutor_id": input.TutorID,
				"closed_at":         input.At,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return ErrTuitionUnavailable
		}

		accepted := tx.Model(&models.Application{}).
			Where("id = ? AND tuition_id = ? AND status = ?", input.ApplicationID, input.TuitionID, models.ApplicationStatusPending).
			Updates(map[string]interface{}{
				"status":       models.ApplicationStatusAccepted,
				"responded_at": input.At,
			})
		if accepted.Error != nil {
			return accepted.Error
		}
		if accepted.RowsAffected == 0 {
			return ErrApplicationNotPending
		}

		if err := tx.Where("tuition_id = ? AND id <> ? AND status = ?", input.TuitionID, input.ApplicationID, models.ApplicationStatusPending).
			Find(&result.RejectedSiblings).Error; err != nil {
			return err
		}
		if len(result.RejectedSiblings) > 0 {
			ids := make([]uint, 0, len(result.RejectedSiblings))
			for _, sibling := range result.RejectedSiblings {
				ids = append(ids, sibling.ID)
			}
			if err := tx.Model(&models.Application{}).
				Where("id IN ? AND status = ?", ids, models.ApplicationStatusPending).
				Updates(map[string]interface{}{
					"status":               models.ApplicationStatusRejected,
					"responded_at":         input.At,
					"rejection_reason":     models.SiblingRejectionReason,
					"closed_by_payment_id": input.Payment.ID,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).
			Where("id = ?", input.TutorID).
			UpdateColumn("total_earnings", gorm.Expr("total_earnings + ?", input.Payment.TutorReceives)).Error
	})
	if err != nil {
		return AcceptanceResult{}, err
	}

	return result, nil
}

// Refund marks a completed payment refunded and restores the tuition and its
// applications to the state they had before acceptance.
func (r *acceptanceRepository) Refund(ctx context.Context, input RefundInput) (RefundResult, error) {
	var result RefundResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, input.PaymentID).Error; err != nil {
			return err
		}

		amount := input.Amount
		if amount <= 0 {
			amount = payment.Amount
		}

		marked := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"status":        models.PaymentStatusRefunded,
				"refund_amount": amount,
				"refund_reason": input.Reason,
				"refunded_at":   input.At,
			})
		if marked.Error != nil {
			return marked.Error
		}
		if marked.RowsAffected == 0 {
			return ErrStaleState
		}

		reopen := map[string]interface{}{
			"status":               models.ApplicationStatusPending,
			"responded_at":         nil,
			"rejection_reason":     "",
			"closed_by_payment_id": nil,
		}

		if err := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", payment.ApplicationID, models.ApplicationStatusAccepted).
			Updates(reopen).Error; err != nil {
			return err
		}

		siblings := tx.Model(&models.Application{}).
			Where("tuition_id = ? AND status = ? AND closed_by_payment_id = ?", payment.TuitionID, models.ApplicationStatusRejected, payment.ID).
			Updates(reopen)
		if siblings.Error != nil {
			return siblings.Error
		}

		tuition := tx.Model(&models.Tuition{}).
			Where("id = ? AND approved_tutor_id = ?", payment.TuitionID, payment.TutorID).
			Updates(map[string]interface{}{
				"status":            models.TuitionStatusOpen,
				"approved_tutor_id": nil,
				"closed_at":         nil,
			})
		if tuition.Error != nil {
			return tuition.Error
		}
		if tuition.RowsAffected == 0 {
			return ErrStaleState
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", payment.TutorID).
			UpdateColumn("total_earnings", gorm.Expr("total_earnings - ?", payment.TutorReceives)).Error; err != nil {
			return err
		}

		payment.Status = models.PaymentStatusRefunded
		payment.RefundAmount = amount
		payment.RefundReason = input.Reason
		refundedAt := input.At
		payment.RefundedAt = &refundedAt

		result = RefundResult{
			Payment:           payment,
			ReopenedSiblings:  siblings.RowsAffected,
			ReopenedTuitionID: payment.TuitionID,
		}
		return nil
	})
	if err != nil {
		return RefundResult{}, err
	}

	return result, nil
}
