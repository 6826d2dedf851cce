package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
)

func applicationRequest(tuitionID uint) dto.ApplicationCreateRequest {
	return dto.ApplicationCreateRequest{
		TuitionID:      tuitionID,
		Qualifications: "MSc Physics, taught O level for five years",
		Experience:     "5 years",
		ExpectedSalary: 6000,
		Message:        "Available on weekends",
	}
}

func TestApplyRequiresTutorAndOpenTuition(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	open := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	closed := seedTuition(t, m.db, student.ID, "Art", models.ApprovalStatusApproved, models.TuitionStatusClosed)

	_, err := m.applySvc.Apply(ctx, actorOf(student), applicationRequest(open.ID))
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	_, err = m.applySvc.Apply(ctx, actorOf(tutor), applicationRequest(closed.ID))
	require.ErrorIs(t, err, errdefs.ErrInvalidState)

	_, err = m.applySvc.Apply(ctx, actorOf(tutor), applicationRequest(9999))
	require.ErrorIs(t, err, errdefs.ErrNotFound)

	created, err := m.applySvc.Apply(ctx, actorOf(tutor), applicationRequest(open.ID))
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusPending, created.Status)
	require.Equal(t, student.ID, created.StudentID)
	require.Equal(t, tutor.Email, created.Email)
	require.Equal(t, []string{models.NotificationApplicationReceived}, m.notifier.typesFor(student.ID))

	_, err = m.applySvc.Apply(ctx, actorOf(tutor), applicationRequest(open.ID))
	require.ErrorIs(t, err, errdefs.ErrConflict)

	check, err := m.applySvc.CheckApplied(ctx, actorOf(tutor), open.ID)
	require.NoError(t, err)
	require.True(t, check.HasApplied)
	require.Equal(t, created.ID, *check.ApplicationID)

	check, err = m.applySvc.CheckApplied(ctx, actorOf(tutor), closed.ID)
	require.NoError(t, err)
	require.False(t, check.HasApplied)
}

func TestApplicationEditAndWithdrawOnlyWhilePending(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	intruder := seedUser(t, m.db, models.UserRoleTutor, "intruder@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	salary := int64(5500)
	_, err := m.applySvc.Update(ctx, actorOf(intruder), application.ID, dto.ApplicationUpdateRequest{ExpectedSalary: &salary})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	updated, err := m.applySvc.Update(ctx, actorOf(tutor), application.ID, dto.ApplicationUpdateRequest{ExpectedSalary: &salary})
	require.NoError(t, err)
	require.Equal(t, salary, updated.ExpectedSalary)

	withdrawn, err := m.applySvc.Withdraw(ctx, actorOf(tutor), application.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusWithdrawn, withdrawn.Status)

	_, err = m.applySvc.Update(ctx, actorOf(tutor), application.ID, dto.ApplicationUpdateRequest{ExpectedSalary: &salary})
	require.ErrorIs(t, err, errdefs.ErrConflict)

	_, err = m.applySvc.Withdraw(ctx, actorOf(tutor), application.ID)
	require.ErrorIs(t, err, errdefs.ErrInvalidState)
}

func TestApplicationStatusRejectsButNeverAccepts(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	owner := seedUser(t, m.db, models.UserRoleStudent, "owner@example.com")
	other := seedUser(t, m.db, models.UserRoleStudent, "other@example.com")
	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, owner.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	_, err := m.applySvc.UpdateStatus(ctx, actorOf(owner), application.ID, dto.ApplicationStatusRequest{Status: models.ApplicationStatusAccepted})
	require.ErrorIs(t, err, errdefs.ErrValidation)

	_, err = m.applySvc.UpdateStatus(ctx, actorOf(other), application.ID, dto.ApplicationStatusRequest{Status: models.ApplicationStatusRejected})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	rejected, err := m.applySvc.UpdateStatus(ctx, actorOf(owner), application.ID, dto.ApplicationStatusRequest{
		Status: models.ApplicationStatusRejected,
		Reason: "Looking for a female tutor",
	})
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RespondedAt)
	require.Equal(t, []string{models.NotificationApplicationRejected}, m.notifier.typesFor(tutor.ID))

	_, err = m.applySvc.UpdateStatus(ctx, actorOf(admin), application.ID, dto.ApplicationStatusRequest{Status: models.ApplicationStatusRejected})
	require.ErrorIs(t, err, errdefs.ErrInvalidState)
}

func TestApplicationReadsAreScoped(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	owner := seedUser(t, m.db, models.UserRoleStudent, "owner@example.com")
	other := seedUser(t, m.db, models.UserRoleStudent, "other@example.com")
	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	rival := seedUser(t, m.db, models.UserRoleTutor, "rival@example.com")
	tuition := seedTuition(t, m.db, owner.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)
	seedApplication(t, m.db, tuition, rival)

	for _, allowed := range []models.User{owner, admin, tutor} {
		_, err := m.applySvc.Get(ctx, actorOf(allowed), application.ID)
		require.NoError(t, err, allowed.Email)
	}
	for _, denied := range []models.User{other, rival} {
		_, err := m.applySvc.Get(ctx, actorOf(denied), application.ID)
		require.ErrorIs(t, err, errdefs.ErrForbidden, denied.Email)
	}

	_, err := m.applySvc.ListForTuition(ctx, actorOf(other), tuition.ID, dto.ApplicationListRequest{})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	listing, err := m.applySvc.ListForTuition(ctx, actorOf(owner), tuition.ID, dto.ApplicationListRequest{})
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)

	mine, err := m.applySvc.ListMine(ctx, actorOf(tutor), dto.ApplicationListRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	require.NotNil(t, mine.Items[0].Tuition)
	require.Equal(t, "Math", mine.Items[0].Tuition.Subject)

	received, err := m.applySvc.ListMine(ctx, actorOf(owner), dto.ApplicationListRequest{})
	require.NoError(t, err)
	require.Len(t, received.Items, 2)

	none, err := m.applySvc.ListMine(ctx, actorOf(other), dto.ApplicationListRequest{})
	require.NoError(t, err)
	require.Empty(t, none.Items)

	_, err = m.applySvc.ListMine(ctx, actorOf(admin), dto.ApplicationListRequest{})
	require.ErrorIs(t, err, errdefs.ErrForbidden)
}
