package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Pagination
	StudentID *uint
	TutorID   *uint
	Status    string
}

// PaymentTotals aggregates amounts over a filtered set of payments.
type PaymentTotals struct {
	Amount        int64
	PlatformFee   int64
	TutorReceives int64
	Count         int64
}

// PaymentRepository defines read and status operations for payments. Completed
// payments are only created by the acceptance transaction; Create records
// charges that were refunded or left for reconciliation.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (models.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error)
	Totals(ctx context.Context, filter PaymentFilter) (PaymentTotals, error)
	TransitionStatus(ctx context.Context, id uint, from, to string) error
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository constructs a GORM-backed payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Tuition").
		Preload("Student").
		Preload("Tutor").
		First(&payment, id).Error; err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (r *paymentRepository) filtered(ctx context.Context, filter PaymentFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.TutorID != nil {
		query = query.Where("tutor_id = ?", *filter.TutorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return query
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	query := r.filtered(ctx, filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	if err := filter.Pagination.apply(query).
		Preload("Tuition").
		Preload("Student").
		Preload("Tutor").
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

func (r *paymentRepository) Totals(ctx context.Context, filter PaymentFilter) (PaymentTotals, error) {
	var totals PaymentTotals
	err := r.filtered(ctx, filter).
		Select("COALESCE(SUM(amount), 0) AS amount, COALESCE(SUM(platform_fee), 0) AS platform_fee, COALESCE(SUM(tutor_receives), 0) AS tutor_receives, COUNT(*) AS count").
		Scan(&totals).Error
	return totals, err
}

// TransitionStatus moves a payment between non-refund states. Refunds go
// through AcceptanceRepository.Refund.
func (r *paymentRepository) TransitionStatus(ctx context.Context, id uint, from, to string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
