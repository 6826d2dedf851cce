package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

func newApplication(tuition models.Tuition, tutor models.User) *models.Application {
	return &models.Application{
		TuitionID:      tuition.ID,
		TutorID:        tutor.ID,
		StudentID:      tuition.StudentID,
		Name:           tutor.Name,
		Email:          tutor.Email,
		Qualifications: "MSc Physics, five years of coaching",
		Experience:     "5 years",
		ExpectedSalary: 4800,
		Status:         models.ApplicationStatusPending,
		AppliedAt:      time.Now(),
	}
}

func TestApplicationRepositoryCreateRequiresOpenApprovedTuition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	student := seedUser(t, db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, db, models.UserRoleTutor, "tutor@example.com")

	pending := seedTuition(t, db, student.ID, "Math", models.ApprovalStatusPending, models.TuitionStatusOpen)
	require.ErrorIs(t, repo.Create(context.Background(), newApplication(pending, tutor)), ErrTuitionUnavailable)

	closed := seedTuition(t, db, student.ID, "Physics", models.ApprovalStatusApproved, models.TuitionStatusClosed)
	require.ErrorIs(t, repo.Create(context.Background(), newApplication(closed, tutor)), ErrTuitionUnavailable)

	open := seedTuition(t, db, student.ID, "Chemistry", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := newApplication(open, tutor)
	require.NoError(t, repo.Create(context.Background(), application))
	require.NotZero(t, application.ID)

	stored, err := repo.GetByTuitionAndTutor(context.Background(), open.ID, tutor.ID)
	require.NoError(t, err)
	require.Equal(t, application.ID, stored.ID)
}

func TestApplicationRepositoryConcurrentDuplicateApply(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	student := seedUser(t, db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)

	const attempts = 5
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Create(context.Background(), newApplication(tuition, tutor))
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, duplicates int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case err == ErrDuplicate:
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, attempts-1, duplicates)

	var stored int64
	require.NoError(t, db.Model(&models.Application{}).Where("tuition_id = ? AND tutor_id = ?", tuition.ID, tutor.ID).Count(&stored).Error)
	require.Equal(t, int64(1), stored)
}

func TestApplicationRepositoryUpdatePendingOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	student := seedUser(t, db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, db, tuition, tutor)

	require.NoError(t, repo.UpdatePending(context.Background(), application.ID, map[string]interface{}{
		"status": models.ApplicationStatusWithdrawn,
	}))

	err := repo.UpdatePending(context.Background(), application.ID, map[string]interface{}{"message": "late edit"})
	require.ErrorIs(t, err, ErrStaleState)
}

func TestApplicationRepositoryListAndCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	student := seedUser(t, db, models.UserRoleStudent, "student@example.com")
	first := seedUser(t, db, models.UserRoleTutor, "first@example.com")
	second := seedUser(t, db, models.UserRoleTutor, "second@example.com")
	math := seedTuition(t, db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	physics := seedTuition(t, db, student.ID, "Physics", models.ApprovalStatusApproved, models.TuitionStatusOpen)

	seedApplication(t, db, math, first)
	seedApplication(t, db, math, second)
	rejected := seedApplication(t, db, physics, first)
	require.NoError(t, db.Model(&rejected).Update("status", models.ApplicationStatusRejected).Error)

	tutorID := first.ID
	mine, total, err := repo.List(context.Background(), ApplicationFilter{TutorID: &tutorID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.NotNil(t, mine[0].Tuition)

	tuitionID := math.ID
	_, total, err = repo.List(context.Background(), ApplicationFilter{TuitionID: &tuitionID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	studentID := student.ID
	counts, err := repo.CountByStatus(context.Background(), ApplicationFilter{StudentID: &studentID})
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[models.ApplicationStatusPending])
	require.Equal(t, int64(1), counts[models.ApplicationStatusRejected])
}
