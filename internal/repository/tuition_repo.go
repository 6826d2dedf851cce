package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// TuitionFilter narrows tuition listings. Zero values disable a filter.
type TuitionFilter struct {
	Pagination
	StudentID       *uint
	ApprovalStatus  string
	Status          string
	Search          string
	Subject         string
	TutoringType    string
	PreferredMedium string
	MinSalary       *int64
	MaxSalary       *int64
}

// tuitionEditableColumns are the columns an owner or admin edit may write.
var tuitionEditableColumns = []string{
	"title", "subject", "grade", "location", "salary", "days_per_week",
	"class_duration", "student_gender", "tutor_gender_preference",
	"preferred_medium", "tutoring_type", "requirements", "description",
	"student_details", "approval_status",
}

// TuitionRepository defines persistence for tuition postings.
type TuitionRepository interface {
	Create(ctx context.Context, tuition *models.Tuition) error
	GetByID(ctx context.Context, id uint) (models.Tuition, error)
	List(ctx context.Context, filter TuitionFilter) ([]models.Tuition, int64, error)
	UpdateDetails(ctx context.Context, tuition *models.Tuition) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	TransitionStatus(ctx context.Context, id uint, from, to string, fields map[string]interface{}) error
	IncrementViews(ctx context.Context, id uint) error
	DeleteOpen(ctx context.Context, id uint) error
	HasPayments(ctx context.Context, id uint) (bool, error)
	CountByStatus(ctx context.Context, studentID uint) (map[string]int64, error)
}

type tuitionRepository struct {
	db *gorm.DB
}

// NewTuitionRepository constructs a GORM-backed tuition repository.
func NewTuitionRepository(db *gorm.DB) TuitionRepository {
	return &tuitionRepository{db: db}
}

func (r *tuitionRepository) Create(ctx context.Context, tuition *models.Tuition) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(tuition).Error
}

func (r *tuitionRepository) GetByID(ctx context.Context, id uint) (models.Tuition, error) {
	var tuition models.Tuition
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("ApprovedTutor").
		First(&tuition, id).Error; err != nil {
		return models.Tuition{}, err
	}
	return tuition, nil
}

func (r *tuitionRepository) List(ctx context.Context, filter TuitionFilter) ([]models.Tuition, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Tuition{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.ApprovalStatus != "" {
		query = query.Where("approval_status = ?", filter.ApprovalStatus)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(subject) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern, pattern)
	}
	if filter.Subject != "" {
		query = query.Where("LOWER(subject) LIKE ?", likePattern(filter.Subject))
	}
	if filter.TutoringType != "" {
		query = query.Where("tutoring_type = ?", filter.TutoringType)
	}
	if filter.PreferredMedium != "" {
		query = query.Where("preferred_medium = ?", filter.PreferredMedium)
	}
	if filter.MinSalary != nil {
		query = query.Where("salary >= ?", *filter.MinSalary)
	}
	if filter.MaxSalary != nil {
		query = query.Where("salary <= ?", *filter.MaxSalary)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tuitions []models.Tuition
	if err := filter.Pagination.apply(query).
		Preload("Student").
		Order("created_at DESC").
		Order("id DESC").
		Find(&tuitions).Error; err != nil {
		return nil, 0, err
	}

	return tuitions, total, nil
}

// UpdateDetails writes the editable columns unless the tuition has moved to
// ongoing or completed in the meantime.
func (r *tuitionRepository) UpdateDetails(ctx context.Context, tuition *models.Tuition) error {
	result := r.db.WithContext(ctx).
		Model(tuition).
		Where("status NOT IN ?", []string{models.TuitionStatusOngoing, models.TuitionStatusCompleted}).
		Select(tuitionEditableColumns).
		Updates(tuition)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *tuitionRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Tuition{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *tuitionRepository) TransitionStatus(ctx context.Context, id uint, from, to string, fields map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for key, value := range fields {
		updates[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Tuition{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *tuitionRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Tuition{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

// DeleteOpen removes an open tuition together with its applications. A tuition
// with any payment row, refunded ones included, keeps its history and returns
// ErrHasPayments.
func (r *tuitionRepository) DeleteOpen(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payments int64
		if err := tx.Model(&models.Payment{}).Where("tuition_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return ErrHasPayments
		}

		if err := tx.Where("tuition_id = ?", id).Delete(&models.Application{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ? AND status = ?", id, models.TuitionStatusOpen).Delete(&models.Tuition{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	})
}

func (r *tuitionRepository) HasPayments(ctx context.Context, id uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("tuition_id = ?", id).Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *tuitionRepository) CountByStatus(ctx context.Context, studentID uint) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Tuition{}).Where("student_id = ?", studentID)
	return countByColumn(query, "status")
}
