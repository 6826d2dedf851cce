package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

func TestAdminTuitionModeration(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusPending, models.TuitionStatusOpen)

	_, err := m.adminSvc.ApproveTuition(ctx, actorOf(student), tuition.ID)
	require.ErrorIs(t, err, errdefs.ErrForbidden)
	_, err = m.adminSvc.ApproveTuition(ctx, actorOf(admin), 9999)
	require.ErrorIs(t, err, errdefs.ErrNotFound)

	_, err = m.adminSvc.RejectTuition(ctx, actorOf(admin), tuition.ID, dto.AdminTuitionRejectRequest{Reason: "   "})
	require.ErrorIs(t, err, errdefs.ErrValidation)

	rejected, err := m.adminSvc.RejectTuition(ctx, actorOf(admin), tuition.ID, dto.AdminTuitionRejectRequest{Reason: "Salary missing details"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusRejected, rejected.ApprovalStatus)
	require.Equal(t, "Salary missing details", rejected.RejectionReason)

	approved, err := m.adminSvc.ApproveTuition(ctx, actorOf(admin), tuition.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, approved.ApprovalStatus)
	require.Empty(t, approved.RejectionReason)
	require.NotNil(t, approved.ApprovedAt)

	stored, err := m.tuitions.GetByID(ctx, tuition.ID)
	require.NoError(t, err)
	require.Nil(t, stored.RejectedAt)
	require.Equal(t, admin.ID, *stored.ApprovedBy)

	require.Equal(t,
		[]string{models.NotificationTuitionRejected, models.NotificationTuitionApproved},
		m.notifier.typesFor(student.ID))

	log, err := m.activity.List(ctx, actorOf(admin), dto.AdminActivityListRequest{EntityType: "tuition"})
	require.NoError(t, err)
	require.Len(t, log.Items, 2)

	listing, err := m.adminSvc.ListTuitions(ctx, actorOf(admin), dto.AdminTuitionListRequest{ApprovalStatus: models.ApprovalStatusApproved})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
}

func TestAdminUserManagement(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	otherAdmin := seedUser(t, m.db, models.UserRoleAdmin, "other.admin@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	require.NoError(t, m.db.Model(&tutor).Update("status", models.UserStatusPending).Error)

	_, err := m.adminSvc.UpdateUserStatus(ctx, actorOf(tutor), tutor.ID, dto.AdminStatusUpdateRequest{Status: "active"})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	activated, err := m.adminSvc.UpdateUserStatus(ctx, actorOf(admin), tutor.ID, dto.AdminStatusUpdateRequest{Status: "active"})
	require.NoError(t, err)
	require.Equal(t, models.UserStatusApproved, activated.Status)
	require.NotNil(t, activated.ApprovedAt)
	require.Equal(t, []string{models.NotificationAccountUpdate}, m.notifier.typesFor(tutor.ID))

	_, err = m.adminSvc.UpdateUserStatus(ctx, actorOf(admin), admin.ID, dto.AdminStatusUpdateRequest{Status: models.UserStatusBlocked})
	require.ErrorIs(t, err, errdefs.ErrInvalidState)

	blocked, err := m.adminSvc.UpdateUserStatus(ctx, actorOf(admin), tutor.ID, dto.AdminStatusUpdateRequest{Status: models.UserStatusBlocked, Reason: "Spam"})
	require.NoError(t, err)
	require.Equal(t, "Spam", blocked.RejectionReason)

	_, err = m.adminSvc.UpdateUserRole(ctx, actorOf(admin), admin.ID, dto.AdminRoleUpdateRequest{Role: models.UserRoleStudent})
	require.ErrorIs(t, err, errdefs.ErrInvalidState)

	promoted, err := m.adminSvc.UpdateUserRole(ctx, actorOf(admin), tutor.ID, dto.AdminRoleUpdateRequest{Role: models.UserRoleStudent})
	require.NoError(t, err)
	require.Equal(t, models.UserRoleStudent, promoted.Role)

	listing, err := m.adminSvc.ListUsers(ctx, actorOf(admin), dto.AdminUserListRequest{Role: "admin"})
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)

	require.ErrorIs(t, m.adminSvc.DeleteUser(ctx, actorOf(admin), admin.ID), errdefs.ErrInvalidState)
	require.ErrorIs(t, m.adminSvc.DeleteUser(ctx, actorOf(admin), otherAdmin.ID), errdefs.ErrForbidden)
	require.NoError(t, m.adminSvc.DeleteUser(ctx, actorOf(admin), tutor.ID))

	_, err = m.adminSvc.GetUser(ctx, actorOf(admin), tutor.ID)
	require.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestAdminDeleteUserWithPaymentsIsRefused(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	fee, share := models.SplitPlatformFee(tuition.Salary)
	_, err := repository.NewAcceptanceRepository(m.db).Accept(ctx, repository.AcceptanceInput{
		Payment: &models.Payment{
			TuitionID:     tuition.ID,
			ApplicationID: application.ID,
			StudentID:     student.ID,
			TutorID:       tutor.ID,
			Amount:        tuition.Salary,
			Currency:      models.DefaultCurrency,
			TransactionID: "pi_history",
			Status:        models.PaymentStatusCompleted,
			PlatformFee:   fee,
			TutorReceives: share,
		},
		ApplicationID: application.ID,
		TuitionID:     tuition.ID,
		TutorID:       tutor.ID,
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.adminSvc.DeleteUser(ctx, actorOf(admin), student.ID), errdefs.ErrInvalidState)
	require.ErrorIs(t, m.adminSvc.DeleteUser(ctx, actorOf(admin), tutor.ID), errdefs.ErrInvalidState)
}
