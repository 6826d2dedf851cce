package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/pkg/payment"
)

func TestAcceptanceEndToEndWithRefund(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutorA := seedUser(t, m.db, models.UserRoleTutor, "tutor.a@example.com")
	tutorB := seedUser(t, m.db, models.UserRoleTutor, "tutor.b@example.com")

	created, err := m.tuitionSvc.Create(ctx, actorOf(student), dto.TuitionCreateRequest{
		Title:        "Math tutor for class 8",
		Subject:      "Math",
		Grade:        "Class 8",
		Location:     "Dhaka",
		Salary:       5000,
		DaysPerWeek:  3,
		TutoringType: "Home Tutoring",
		Requirements: "Strong algebra background",
	})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, created.ApprovalStatus)

	apply := dto.ApplicationCreateRequest{
		TuitionID:      created.ID,
		Qualifications: "BSc in Applied Mathematics, 4 years teaching",
		Experience:     "4 years",
		ExpectedSalary: 5000,
	}
	_, err = m.applySvc.Apply(ctx, actorOf(tutorA), apply)
	require.ErrorIs(t, err, errdefs.ErrInvalidState)

	_, err = m.adminSvc.ApproveTuition(ctx, actorOf(admin), created.ID)
	require.NoError(t, err)

	appA, err := m.applySvc.Apply(ctx, actorOf(tutorA), apply)
	require.NoError(t, err)
	appB, err := m.applySvc.Apply(ctx, actorOf(tutorB), apply)
	require.NoError(t, err)

	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: appA.ID})
	require.NoError(t, err)
	require.Equal(t, int64(5000), intent.Amount)

	accepted, err := m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appA.ID, PaymentIntentID: intent.IntentID})
	require.NoError(t, err)
	require.Equal(t, int64(5000), accepted.Payment.Amount)
	require.Equal(t, int64(500), accepted.Payment.PlatformFee)
	require.Equal(t, int64(4500), accepted.Payment.TutorReceives)
	require.Equal(t, "BDT", accepted.Payment.Currency)
	require.Equal(t, 1, accepted.RejectedSiblings)

	tuition, err := m.tuitions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.TuitionStatusOngoing, tuition.Status)
	require.Equal(t, tutorA.ID, *tuition.ApprovedTutorID)

	sibling, err := m.applications.GetByID(ctx, appB.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusRejected, sibling.Status)
	require.Equal(t, models.SiblingRejectionReason, sibling.RejectionReason)

	earner, err := m.users.GetByID(ctx, tutorA.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4500), earner.TotalEarnings)

	require.Contains(t, m.notifier.typesFor(tutorA.ID), models.NotificationApplicationAccepted)
	require.Contains(t, m.notifier.typesFor(tutorA.ID), models.NotificationPaymentReceived)
	require.Contains(t, m.notifier.typesFor(tutorB.ID), models.NotificationApplicationRejected)
	require.Contains(t, m.notifier.typesFor(student.ID), models.NotificationPaymentMade)

	_, err = m.acceptSvc.Refund(ctx, actorOf(student), accepted.Payment.ID, 0, "")
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	refunded, err := m.paymentSvc.AdminUpdateStatus(ctx, actorOf(admin), accepted.Payment.ID, dto.AdminPaymentStatusRequest{
		Status:       models.PaymentStatusRefunded,
		RefundReason: "Tutor unavailable",
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	require.Equal(t, int64(5000), refunded.RefundAmount)
	require.Len(t, m.gateway.refunds, 1)

	tuition, err = m.tuitions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.TuitionStatusOpen, tuition.Status)
	require.Nil(t, tuition.ApprovedTutorID)
	require.Nil(t, tuition.ClosedAt)

	for _, id := range []uint{appA.ID, appB.ID} {
		application, err := m.applications.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.ApplicationStatusPending, application.Status)
		require.Nil(t, application.RespondedAt)
	}

	earner, err = m.users.GetByID(ctx, tutorA.ID)
	require.NoError(t, err)
	require.Zero(t, earner.TotalEarnings)

	_, err = m.acceptSvc.Refund(ctx, actorOf(admin), accepted.Payment.ID, 0, "")
	require.ErrorIs(t, err, errdefs.ErrInvalidState)
}

func TestAcceptanceConcurrentConfirmsHaveOneWinner(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Physics", models.ApprovalStatusApproved, models.TuitionStatusOpen)

	const contenders = 4
	requests := make([]dto.PaymentConfirmRequest, 0, contenders)
	for i := 0; i < contenders; i++ {
		tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor"+string(rune('a'+i))+"@example.com")
		application := seedApplication(t, m.db, tuition, tutor)
		intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: application.ID})
		require.NoError(t, err)
		requests = append(requests, dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: intent.IntentID})
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for _, req := range requests {
		wg.Add(1)
		go func(req dto.PaymentConfirmRequest) {
			defer wg.Done()
			_, err := m.acceptSvc.Confirm(ctx, actorOf(student), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, errdefs.ErrInvalidState):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(req)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, contenders-1, losses)

	var completed, refunded int64
	require.NoError(t, m.db.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusCompleted).Count(&completed).Error)
	require.NoError(t, m.db.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusRefunded).Count(&refunded).Error)
	require.Equal(t, int64(1), completed)
	require.Equal(t, int64(contenders-1), refunded)
	require.Len(t, m.gateway.refunds, contenders-1)

	var accepted int64
	require.NoError(t, m.db.Model(&models.Application{}).Where("status = ?", models.ApplicationStatusAccepted).Count(&accepted).Error)
	require.Equal(t, int64(1), accepted)
}

func TestAcceptanceUnsuccessfulPaymentWritesNothing(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Chemistry", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	m.gateway.settle("pi_declined", payment.Confirmation{Reference: "pi_declined", Status: "requires_payment_method"})
	_, err := m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: "pi_declined"})
	require.ErrorIs(t, err, errdefs.ErrValidation)

	m.gateway.settle("pi_other", payment.Confirmation{
		Reference: "pi_other",
		Succeeded: true,
		Amount:    5000,
		Metadata:  map[string]string{metadataApplicationID: "9999"},
	})
	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: "pi_other"})
	require.ErrorIs(t, err, errdefs.ErrValidation)

	m.gateway.confirmErr = errors.New("processor down")
	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: "pi_any"})
	require.Error(t, err)
	require.Nil(t, errdefs.Kind(err))

	var payments int64
	require.NoError(t, m.db.Model(&models.Payment{}).Count(&payments).Error)
	require.Zero(t, payments)

	stored, err := m.tuitions.GetByID(ctx, tuition.ID)
	require.NoError(t, err)
	require.Equal(t, models.TuitionStatusOpen, stored.Status)
}

func TestAcceptanceRequiresTuitionOwner(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	owner := seedUser(t, m.db, models.UserRoleStudent, "owner@example.com")
	other := seedUser(t, m.db, models.UserRoleStudent, "other@example.com")
	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, owner.ID, "Biology", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	_, err := m.acceptSvc.CreateIntent(ctx, actorOf(other), dto.PaymentIntentRequest{ApplicationID: application.ID})
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(owner), dto.PaymentIntentRequest{ApplicationID: application.ID})
	require.NoError(t, err)

	req := dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: intent.IntentID}
	_, err = m.acceptSvc.Confirm(ctx, actorOf(other), req)
	require.ErrorIs(t, err, errdefs.ErrForbidden)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(admin), req)
	require.NoError(t, err)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(owner), req)
	require.ErrorIs(t, err, errdefs.ErrConflict)
	require.Empty(t, m.gateway.refunds)
}

func TestAcceptanceIntentForAnotherApplicationIsRejected(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	first := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	second := seedTuition(t, m.db, student.ID, "English", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	appFirst := seedApplication(t, m.db, first, tutor)
	appSecond := seedApplication(t, m.db, second, tutor)

	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: appFirst.ID})
	require.NoError(t, err)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appFirst.ID, PaymentIntentID: intent.IntentID})
	require.NoError(t, err)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appSecond.ID, PaymentIntentID: intent.IntentID})
	require.ErrorIs(t, err, errdefs.ErrValidation)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appFirst.ID, PaymentIntentID: intent.IntentID})
	require.ErrorIs(t, err, errdefs.ErrConflict)
	require.Empty(t, m.gateway.refunds)

	stored, err := m.tuitions.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, models.TuitionStatusOpen, stored.Status)
}

func TestCheckIntentMetadata(t *testing.T) {
	application := models.Application{ID: 7, TuitionID: 3, StudentID: 11}

	cases := []struct {
		name     string
		metadata map[string]string
		wantErr  bool
	}{
		{name: "matching", metadata: map[string]string{metadataApplicationID: "7", metadataTuitionID: "3", metadataStudentID: "11"}},
		{name: "application only", metadata: map[string]string{metadataApplicationID: "7"}},
		{name: "missing application", metadata: map[string]string{metadataTuitionID: "3", metadataStudentID: "11"}, wantErr: true},
		{name: "no metadata", metadata: nil, wantErr: true},
		{name: "other application", metadata: map[string]string{metadataApplicationID: "8"}, wantErr: true},
		{name: "other tuition", metadata: map[string]string{metadataApplicationID: "7", metadataTuitionID: "4"}, wantErr: true},
		{name: "other student", metadata: map[string]string{metadataApplicationID: "7", metadataStudentID: "12"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkIntentMetadata(tc.metadata, application)
			if tc.wantErr {
				require.ErrorIs(t, err, errdefs.ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAcceptanceLateChargeIsRefunded(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutorA := seedUser(t, m.db, models.UserRoleTutor, "tutor.a@example.com")
	tutorB := seedUser(t, m.db, models.UserRoleTutor, "tutor.b@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	appA := seedApplication(t, m.db, tuition, tutorA)
	appB := seedApplication(t, m.db, tuition, tutorB)

	intentA, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: appA.ID})
	require.NoError(t, err)
	intentB, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: appB.ID})
	require.NoError(t, err)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appA.ID, PaymentIntentID: intentA.IntentID})
	require.NoError(t, err)

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appB.ID, PaymentIntentID: intentB.IntentID})
	require.ErrorIs(t, err, errdefs.ErrInvalidState)
	require.Contains(t, err.Error(), "refunded")

	require.Len(t, m.gateway.refunds, 1)
	require.Equal(t, intentB.IntentID, m.gateway.refunds[0].Reference)

	late, err := m.payments.GetByTransactionID(ctx, intentB.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, late.Status)
	require.Equal(t, appB.ID, late.ApplicationID)
	require.Equal(t, int64(5000), late.RefundAmount)
	require.Zero(t, late.PlatformFee)
	require.NotNil(t, late.RefundedAt)
	require.Contains(t, m.notifier.typesFor(student.ID), models.NotificationPaymentRefunded)

	// Retrying the same intent must not refund twice.
	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: appB.ID, PaymentIntentID: intentB.IntentID})
	require.ErrorIs(t, err, errdefs.ErrConflict)
	require.Len(t, m.gateway.refunds, 1)

	spent, err := m.paymentSvc.ListMine(ctx, actorOf(student), 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(5000), spent.TotalSpent)
}

func TestAcceptanceLateChargeHeldWhenRefundFails(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: application.ID})
	require.NoError(t, err)

	require.NoError(t, m.db.Model(&models.Tuition{}).Where("id = ?", tuition.ID).Update("status", models.TuitionStatusClosed).Error)
	m.gateway.refundErr = errors.New("processor refused")

	_, err = m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: intent.IntentID})
	require.ErrorIs(t, err, errdefs.ErrInvalidState)

	held, err := m.payments.GetByTransactionID(ctx, intent.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusFailed, held.Status)
	require.Zero(t, held.RefundAmount)

	stored, err := m.applications.GetByID(ctx, application.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusPending, stored.Status)
}

func TestRefundGatewayFailureLeavesAcceptance(t *testing.T) {
	m := newMarketplace(t, nil)
	ctx := context.Background()

	admin := seedUser(t, m.db, models.UserRoleAdmin, "admin@example.com")
	student := seedUser(t, m.db, models.UserRoleStudent, "student@example.com")
	tutor := seedUser(t, m.db, models.UserRoleTutor, "tutor@example.com")
	tuition := seedTuition(t, m.db, student.ID, "Math", models.ApprovalStatusApproved, models.TuitionStatusOpen)
	application := seedApplication(t, m.db, tuition, tutor)

	intent, err := m.acceptSvc.CreateIntent(ctx, actorOf(student), dto.PaymentIntentRequest{ApplicationID: application.ID})
	require.NoError(t, err)
	accepted, err := m.acceptSvc.Confirm(ctx, actorOf(student), dto.PaymentConfirmRequest{ApplicationID: application.ID, PaymentIntentID: intent.IntentID})
	require.NoError(t, err)

	m.gateway.refundErr = errors.New("processor refused")
	_, err = m.acceptSvc.Refund(ctx, actorOf(admin), accepted.Payment.ID, 0, "changed mind")
	require.Error(t, err)

	stored, err := m.payments.GetByID(ctx, accepted.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, stored.Status)
}
