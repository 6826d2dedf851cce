package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// ReviewFilter narrows review listings.
type ReviewFilter struct {
	Pagination
	TutorID   *uint
	StudentID *uint
}

// ReviewRepository persists reviews. Every write recomputes the tutor's
// rating and total_reviews in the same transaction.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uint) (models.Review, error)
	GetByTutorAndStudent(ctx context.Context, tutorID, studentID uint) (models.Review, error)
	List(ctx context.Context, filter ReviewFilter) ([]models.Review, int64, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository constructs a GORM-backed review repository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(review).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicate
			}
			return err
		}
		return recomputeTutorRating(tx, review.TutorID)
	})
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Tutor").
		First(&review, id).Error; err != nil {
		return models.Review{}, err
	}
	return review, nil
}

func (r *reviewRepository) GetByTutorAndStudent(ctx context.Context, tutorID, studentID uint) (models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).
		Where("tutor_id = ? AND student_id = ?", tutorID, studentID).
		First(&review).Error; err != nil {
		return models.Review{}, err
	}
	return review, nil
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]models.Review, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Review{})
	if filter.TutorID != nil {
		query = query.Where("tutor_id = ?", *filter.TutorID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	if err := filter.Pagination.apply(query).
		Preload("Student").
		Preload("Tutor").
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error; err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *reviewRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&review).Updates(fields).Error; err != nil {
			return err
		}
		return recomputeTutorRating(tx, review.TutorID)
	})
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Review{}, review.ID).Error; err != nil {
			return err
		}
		return recomputeTutorRating(tx, review.TutorID)
	})
}

// recomputeTutorRating stores the tutor's average rating, rounded to one
// decimal, and review count.
func recomputeTutorRating(tx *gorm.DB, tutorID uint) error {
	var stats struct {
		Average float64
		Total   int64
	}
	if err := tx.Model(&models.Review{}).
		Where("tutor_id = ?", tutorID).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Scan(&stats).Error; err != nil {
		return err
	}

	return tx.Model(&models.User{}).
		Where("id = ?", tutorID).
		Updates(map[string]interface{}{
			"rating":        models.RoundRating(stats.Average),
			"total_reviews": stats.Total,
		}).Error
}
