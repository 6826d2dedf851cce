package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
)

// hire runs an acceptance so the student may review the tutor.
func hire(t *testing.T, m *marketplace, student, tutor models.User, subject string) {
	t.Helper()
	ctx := context.Background()

	tuition := seedTuition(t, m.db, student.ID, subject, models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)
	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: application.ID})
	require.NoError(t, err)
	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: intent.IntentID})
	require.NoError(t, err)
}

func TestReviewRequiresAcceptedApplication(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	req := dto.ReviewCreateRequest{TutorID: tutor.ID, Rating: 5, Comment: "Explains every step clearly"}

	eligibility, err := m.reviewSvc.CanReview(ctx, actorOf(student), tutor.ID)
	require.NoError(t, err)
	require.False(t, eligibility.CanReview)
	require.False(t, eligibility.HasHired)

	_, err = m.reviewSvc.Create(ctx, actorOf(student), req)
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	_, err = m.reviewSvc.Create(ctx, actorOf(tutor), req)
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	hire(t, m, student, tutor, "Math")

	eligibility, err = m.reviewSvc.CanReview(ctx, actorOf(student), tutor.ID)
	require.NoError(t, err)
	require.True(t, eligibility.CanReview)

	created, err := m.reviewSvc.Create(ctx, actorOf(student), req)
	require.NoError(t, err)
	require.Equal(t, 5, created.Rating)
	require.NotNil(t, created.Student)
	require.Equal(t, student.Name, created.Student.Name)
	require.Contains(t, m.notifier.typesFor(tutor.ID), models.NotificationReviewReceived)

	_, err = m.reviewSvc.Create(ctx, actorOf(student), req)
	require.ErrorIs(t, err, errdefs.ErrConflict)

	eligibility, err = m.reviewSvc.CanReview(ctx, actorOf(student), tutor.ID)
	require.NoError(t, err)
	require.False(t, eligibility.CanReview)
	require.True(t, eligibility.HasReviewed)
	require.NotNil(t, eligibility.Review)
	require.Equal(t, created.ID, eligibility.Review.ID)
}

func TestReviewValidation(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	otherStudent := seedUser(t, m.db, models.UserRoleStudent, "other@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	hire(t, m, student, tutor, "Math")

	_, err := m.reviewSvc.Create(ctx, actorOf(student), dto.ReviewCreateRequest{TutorID: tutor.ID, Rating: 6, Comment: "Explains every step clearly"})
	require.Error(t, err)
	_, err = m.reviewSvc.Create(ctx, actorOf(student), dto.ReviewCreateRequest{TutorID: tutor.ID, Rating: 4, Comment: "short"})
	require.Error(t, err)
	_, err = m.reviewSvc.Create(ctx, actorOf(student), dto.ReviewCreateRequest{TutorID: otherStudent.ID, Rating: 4, Comment: "Explains every step clearly"})
	require.ErrorIs(t, err, errdefs.ErrNotFound)
	_, err = m.reviewSvc.ListForTutor(ctx, otherStudent.ID, 1, 10)
	require.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestReviewUpdateDeleteRecomputeRating(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	first := seedUser(t, m.db, models.UserRoleStudent, "first@example.com")
	second := seedUser(t, m.db, models.UserRoleStudent, "second@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	hire(t, m, first, tutor, "Math")
	hire(t, m, second, tutor, "Physics")

	mine, err := m.reviewSvc.Create(ctx, actorOf(first), dto.ReviewCreateRequest{TutorID: tutor.ID, Rating: 5, Comment: "Explains every step clearly"})
	require.NoError(t, err)
	theirs, err := m.reviewSvc.Create(ctx, actorOf(second), dto.ReviewCreateRequest{TutorID: tutor.ID, Rating: 2, Comment: "Missed several of our sessions"})
	require.NoError(t, err)

	listing, err := m.reviewSvc.ListForTutor(ctx, tutor.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	require.Equal(t, 3.5, listing.AverageRating)
	require.Equal(t, 2, listing.TotalReviews)

	rating := 4
	_, err = m.reviewSvc.Update(ctx, actorOf(second), mine.ID, dto.ReviewUpdateRequest{Rating: &rating})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	updated, err := m.reviewSvc.Update(ctx, actorOf(first), mine.ID, dto.ReviewUpdateRequest{Rating: &rating})
	require.NoError(t, err)
	require.Equal(t, 4, updated.Rating)
	require.Equal(t, "Explains every step clearly", updated.Comment)

	profile, err := m.users.GetByID(ctx, tutor.ID)
	require.NoError(t, err)
	require.Equal(t, 3.0, profile.Rating)

	require.ErrorIs(t, m.reviewSvc.Delete(ctx, actorOf(first), theirs.ID), errdefs.ErrForbidden)
	require.NoError(t, m.reviewSvc.Delete(ctx, actorOf(admin), theirs.ID))
	require.ErrorIs(t, m.reviewSvc.Delete(ctx, actorOf(admin), theirs.ID), errdefs.ErrNotFound)

	profile, err = m.users.GetByID(ctx, tutor.ID)
	require.NoError(t, err)
	require.Equal(t, 4.0, profile.Rating)
	require.Equal(t, 1, profile.TotalReviews)

	own, err := m.reviewSvc.ListMine(ctx, actorOf(first), 1, 10)
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.NotNil(t, own.Items[0].Tutor)
}
