package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// ErrTuitionUnavailable reports that a tuition is no longer approved and open.
var ErrTuitionUnavailable = errors.New("tuition is not accepting applications")

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Pagination
	TuitionID *uint
	TutorID   *uint
	StudentID *uint
	Status    string
}

// ApplicationRepository defines persistence for tutor applications.
type ApplicationRepository interface {
	Create(ctx context.Context, application *models.Application) error
	GetByID(ctx context.Context, id uint) (models.Application, error)
	GetByTuitionAndTutor(ctx context.Context, tuitionID, tutorID uint) (models.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)
	UpdatePending(ctx context.Context, id uint, fields map[string]interface{}) error
	CountByStatus(ctx context.Context, filter ApplicationFilter) (map[string]int64, error)
	HasAccepted(ctx context.Context, studentID, tutorID uint) (bool, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository constructs a GORM-backed application repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

// Create inserts the application while holding the tuition row, so an
// acceptance committing concurrently either sees the new row or the insert
// sees the tuition leave the open state.
func (r *applicationRepository) Create(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := tx.Model(&models.Tuition{}).
			Where("id = ? AND status = ? AND approval_status = ?", application.TuitionID, models.TuitionStatusOpen, models.ApprovalStatusApproved).
			UpdateColumn("status", gorm.Expr("status"))
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return ErrTuitionUnavailable
		}

		if err := tx.Omit(clause.Associations).Create(application).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).
		Preload("Tuition").
		Preload("Tutor").
		First(&application, id).Error; err != nil {
		return models.Application{}, err
	}
	return application, nil
}

func (r *applicationRepository) GetByTuitionAndTutor(ctx context.Context, tuitionID, tutorID uint) (models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).
		Where("tuition_id = ? AND tutor_id = ?", tuitionID, tutorID).
		First(&application).Error; err != nil {
		return models.Application{}, err
	}
	return application, nil
}

func (r *applicationRepository) filtered(ctx context.Context, filter ApplicationFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Application{})
	if filter.TuitionID != nil {
		query = query.Where("tuition_id = ?", *filter.TuitionID)
	}
	if filter.TutorID != nil {
		query = query.Where("tutor_id = ?", *filter.TutorID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return query
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	query := r.filtered(ctx, filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var applications []models.Application
	if err := filter.Pagination.apply(query).
		Preload("Tuition").
		Preload("Tutor").
		Order("applied_at DESC").
		Order("id DESC").
		Find(&applications).Error; err != nil {
		return nil, 0, err
	}

	return applications, total, nil
}

// UpdatePending applies fields only while the application is still pending.
func (r *applicationRepository) UpdatePending(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ?", id, models.ApplicationStatusPending).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context, filter ApplicationFilter) (map[string]int64, error) {
	filter.Status = ""
	return countByColumn(r.filtered(ctx, filter), "status")
}

// HasAccepted reports whether the student has accepted one of the tutor's
// applications.
func (r *applicationRepository) HasAccepted(ctx context.Context, studentID, tutorID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("student_id = ? AND tutor_id = ? AND status = ?", studentID, tutorID, models.ApplicationStatusAccepted).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}
