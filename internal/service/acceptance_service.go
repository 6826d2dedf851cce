package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/observability"
	"github.com/noah-isme/tutorlink-api/internal/repository"
	"github.com/noah-isme/tutorlink-api/pkg/payment"
)

// Intent metadata keys checked on confirmation.
const (
	metadataApplicationID = "application_id"
	metadataTuitionID     = "tuition_id"
	metadataStudentID     = "student_id"
	metadataTutorID       = "tutor_id"
)

// AcceptanceService turns a successful payment into an accepted application.
type AcceptanceService interface {
	CreateIntent(ctx context.Context, actor authz.Actor, req dto.PaymentIntentRequest) (dto.PaymentIntentResponse, error)
	Confirm(ctx context.Context, actor authz.Actor, req dto.PaymentConfirmRequest) (dto.AcceptanceResponse, error)
	Refund(ctx context.Context, actor authz.Actor, paymentID uint, amount int64, reason string) (dto.PaymentResponse, error)
}

type acceptanceService struct {
	acceptances  repository.AcceptanceRepository
	applications repository.ApplicationRepository
	tuitions     repository.TuitionRepository
	payments     repository.PaymentRepository
	gateway      payment.Gateway
	validator    *validator.Validate
	notifier     Notifier
	cache        *MarketplaceCache
	activity     ActivityRecorder
	currency     string
	tracer       trace.Tracer
	logger       zerolog.Logger
	now          func() time.Time
}

// AcceptanceDeps groups the collaborators of the acceptance coordinator.
type AcceptanceDeps struct {
	Acceptances  repository.AcceptanceRepository
	Applications repository.ApplicationRepository
	Tuitions     repository.TuitionRepository
	Payments     repository.PaymentRepository
	Gateway      payment.Gateway
	Validator    *validator.Validate
	Notifier     Notifier
	Cache        *MarketplaceCache
	Activity     ActivityRecorder
	Currency     string
}

// NewAcceptanceService constructs the acceptance coordinator.
func NewAcceptanceService(deps AcceptanceDeps, logger zerolog.Logger) AcceptanceService {
	gateway := deps.Gateway
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}

	return &acceptanceService{
		acceptances:  deps.Acceptances,
		applications: deps.Applications,
		tuitions:     deps.Tuitions,
		payments:     deps.Payments,
		gateway:      gateway,
		validator:    deps.Validator,
		notifier:     notifierOrDiscard(deps.Notifier),
		cache:        deps.Cache,
		activity:     deps.Activity,
		currency:     currency,
		tracer:       observability.Tracer("internal/service/acceptance"),
		logger:       logger.With().Str("component", "acceptance_service").Logger(),
		now:          time.Now,
	}
}

func (s *acceptanceService) CreateIntent(ctx context.Context, actor authz.Actor, req dto.PaymentIntentRequest) (dto.PaymentIntentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.PaymentIntentResponse{}, err
	}

	application, tuition, err := s.loadApplication(ctx, req.ApplicationID)
	if err != nil {
		return dto.PaymentIntentResponse{}, err
	}
	if err := authz.Require(actor, authz.IsOwner(application.StudentID), "only the tuition owner can pay for an application"); err != nil {
		return dto.PaymentIntentResponse{}, err
	}
	if !application.IsPending() {
		return dto.PaymentIntentResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "application is %s", application.Status)
	}
	if !tuition.IsPublic() {
		return dto.PaymentIntentResponse{}, errdefs.New(errdefs.ErrInvalidState, "tuition is not open for acceptance")
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:      tuition.Salary,
		Currency:    s.currency,
		Description: fmt.Sprintf("Tuition payment for %s", tuition.Title),
		Metadata: map[string]string{
			metadataApplicationID: strconv.FormatUint(uint64(application.ID), 10),
			metadataTuitionID:     strconv.FormatUint(uint64(tuition.ID), 10),
			metadataStudentID:     strconv.FormatUint(uint64(application.StudentID), 10),
			metadataTutorID:       strconv.FormatUint(uint64(application.TutorID), 10),
		},
	})
	if err != nil {
		return dto.PaymentIntentResponse{}, fmt.Errorf("create payment intent: %w", err)
	}

	return dto.PaymentIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(intent.Currency),
	}, nil
}

// Confirm verifies the intent with the processor and then runs the acceptance
// transaction. Nothing is written when the processor does not report success;
// a successful charge that loses the race is refunded and recorded.
func (s *acceptanceService) Confirm(ctx context.Context, actor authz.Actor, req dto.PaymentConfirmRequest) (dto.AcceptanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AcceptanceResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "acceptance.confirm", trace.WithAttributes(
		attribute.Int64("application.id", int64(req.ApplicationID)),
	))
	defer span.End()

	response, outcome, err := s.confirm(ctx, actor, req)
	observability.Acceptances().WithLabelValues(outcome).Inc()
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		return dto.AcceptanceResponse{}, err
	}
	return response, nil
}

func (s *acceptanceService) confirm(ctx context.Context, actor authz.Actor, req dto.PaymentConfirmRequest) (dto.AcceptanceResponse, string, error) {
	application, tuition, err := s.loadApplication(ctx, req.ApplicationID)
	if err != nil {
		return dto.AcceptanceResponse{}, "not_found", err
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(application.StudentID), "only the tuition owner can accept an application"); err != nil {
		return dto.AcceptanceResponse{}, "forbidden", err
	}

	confirmation, err := s.gateway.Confirm(ctx, req.PaymentIntentID)
	if err != nil {
		return dto.AcceptanceResponse{}, "gateway_error", fmt.Errorf("confirm payment: %w", err)
	}
	if !confirmation.Succeeded {
		if !application.IsPending() {
			return dto.AcceptanceResponse{}, "invalid_state", errdefs.Newf(errdefs.ErrInvalidState, "application is %s", application.Status)
		}
		return dto.AcceptanceResponse{}, "payment_failed", errdefs.Newf(errdefs.ErrValidation, "payment has not succeeded (status %s)", confirmation.Status)
	}
	if err := checkIntentMetadata(confirmation.Metadata, application); err != nil {
		return dto.AcceptanceResponse{}, "payment_mismatch", err
	}
	if confirmation.Amount <= 0 {
		return dto.AcceptanceResponse{}, "payment_mismatch", errdefs.New(errdefs.ErrValidation, "payment amount must be positive")
	}

	now := s.now()
	fee, tutorReceives := models.SplitPlatformFee(confirmation.Amount)
	currency := strings.ToUpper(strings.TrimSpace(confirmation.Currency))
	if currency == "" {
		currency = s.currency
	}
	reference := confirmation.Reference
	if reference == "" {
		reference = req.PaymentIntentID
	}

	// A replayed intent is already accounted for and must not be refunded.
	if _, err := s.payments.GetByTransactionID(ctx, reference); err == nil {
		return dto.AcceptanceResponse{}, "duplicate", errdefs.New(errdefs.ErrConflict, "this payment has already been recorded")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AcceptanceResponse{}, "error", err
	}

	record := models.Payment{
		TuitionID:     application.TuitionID,
		ApplicationID: application.ID,
		StudentID:     application.StudentID,
		TutorID:       application.TutorID,
		Amount:        confirmation.Amount,
		Currency:      currency,
		PaymentMethod: models.PaymentMethodStripe,
		TransactionID: reference,
		Status:        models.PaymentStatusCompleted,
		PlatformFee:   fee,
		TutorReceives: tutorReceives,
		Description:   fmt.Sprintf("Tuition payment for %s", tuition.Title),
		CompletedAt:   &now,
	}

	if !application.IsPending() {
		outcome, err := s.compensate(ctx, actor, tuition, record, fmt.Sprintf("application is %s", application.Status))
		return dto.AcceptanceResponse{}, outcome, err
	}

	result, err := s.acceptances.Accept(ctx, repository.AcceptanceInput{
		Payment:       &record,
		ApplicationID: application.ID,
		TuitionID:     application.TuitionID,
		TutorID:       application.TutorID,
		At:            now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return dto.AcceptanceResponse{}, "duplicate", errdefs.New(errdefs.ErrConflict, "this payment has already been recorded")
		case errors.Is(err, repository.ErrTuitionUnavailable):
			outcome, err := s.compensate(ctx, actor, tuition, record, "tuition is no longer open for acceptance")
			return dto.AcceptanceResponse{}, outcome, err
		case errors.Is(err, repository.ErrApplicationNotPending):
			outcome, err := s.compensate(ctx, actor, tuition, record, "application is no longer pending")
			return dto.AcceptanceResponse{}, outcome, err
		default:
			return dto.AcceptanceResponse{}, "error", err
		}
	}

	application.Status = models.ApplicationStatusAccepted
	application.RespondedAt = &now
	tuition.Status = models.TuitionStatusOngoing
	tuition.ApprovedTutorID = uintPtr(application.TutorID)
	tuition.ClosedAt = &now
	record.Tuition = &tuition

	s.logger.Info().
		Uint("application_id", application.ID).
		Uint("tuition_id", application.TuitionID).
		Uint("payment_id", record.ID).
		Int("rejected_siblings", len(result.RejectedSiblings)).
		Msg("application accepted")

	s.afterAccept(ctx, actor, application, tuition, record, result.RejectedSiblings)

	return dto.AcceptanceResponse{
		Payment:          dto.NewPaymentResponse(record),
		Application:      dto.NewApplicationResponse(application),
		RejectedSiblings: len(result.RejectedSiblings),
	}, "accepted", nil
}

func (s *acceptanceService) afterAccept(ctx context.Context, actor authz.Actor, application models.Application, tuition models.Tuition, record models.Payment, siblings []models.Application) {
	tuitionID := uintPtr(tuition.ID)

	s.notifier.Notify(Notice{
		UserID:        application.TutorID,
		Type:          models.NotificationApplicationAccepted,
		Title:         "Application accepted",
		Message:       fmt.Sprintf("Congratulations! Your application for %q has been accepted.", tuition.Title),
		Link:          fmt.Sprintf("/applications/%d", application.ID),
		Priority:      models.NotificationPriorityHigh,
		TuitionID:     tuitionID,
		ApplicationID: uintPtr(application.ID),
	})
	s.notifier.Notify(Notice{
		UserID:    application.TutorID,
		Type:      models.NotificationPaymentReceived,
		Title:     "Payment received",
		Message:   fmt.Sprintf("You will receive %d %s for %q after the platform fee.", record.TutorReceives, record.Currency, tuition.Title),
		Link:      "/payments/revenue",
		Priority:  models.NotificationPriorityHigh,
		TuitionID: tuitionID,
	})
	s.notifier.Notify(Notice{
		UserID:    application.StudentID,
		Type:      models.NotificationPaymentMade,
		Title:     "Payment successful",
		Message:   fmt.Sprintf("Your payment of %d %s for %q was successful.", record.Amount, record.Currency, tuition.Title),
		Link:      fmt.Sprintf("/payments/%d", record.ID),
		TuitionID: tuitionID,
	})
	for _, sibling := range siblings {
		s.notifier.Notify(Notice{
			UserID:        sibling.TutorID,
			Type:          models.NotificationApplicationRejected,
			Title:         "Application not selected",
			Message:       fmt.Sprintf("Your application for %q was not selected. %s.", tuition.Title, models.SiblingRejectionReason),
			Link:          fmt.Sprintf("/applications/%d", sibling.ID),
			TuitionID:     tuitionID,
			ApplicationID: uintPtr(sibling.ID),
		})
	}

	s.cache.Invalidate(ctx, application.StudentID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionApplicationAccept,
		EntityType: "application",
		EntityID:   uintPtr(application.ID),
		Metadata: map[string]interface{}{
			"tuition_id":        tuition.ID,
			"payment_id":        record.ID,
			"amount":            record.Amount,
			"rejected_siblings": len(siblings),
		},
	})
}

// compensate returns a charge that succeeded at the processor but could not be
// turned into an acceptance. The charge is stored as refunded, or as failed
// when the processor refuses, so it can always be reconciled.
func (s *acceptanceService) compensate(ctx context.Context, actor authz.Actor, tuition models.Tuition, record models.Payment, cause string) (string, error) {
	reason := "Application could not be accepted: " + cause
	now := s.now()

	record.PlatformFee = 0
	record.TutorReceives = 0
	record.CompletedAt = nil
	record.RefundReason = reason

	outcome := "compensated"
	message := cause + "; the payment has been refunded"
	if _, err := s.gateway.Refund(ctx, payment.RefundRequest{Reference: record.TransactionID, Reason: reason}); err != nil {
		s.logger.Error().Err(err).
			Str("transaction_id", record.TransactionID).
			Uint("application_id", record.ApplicationID).
			Msg("compensating refund failed")
		record.Status = models.PaymentStatusFailed
		outcome = "compensation_failed"
		message = cause + "; the payment is held for a manual refund"
	} else {
		record.Status = models.PaymentStatusRefunded
		record.RefundAmount = record.Amount
		record.RefundedAt = &now
	}

	if err := s.payments.Create(ctx, &record); err != nil {
		s.logger.Error().Err(err).
			Str("transaction_id", record.TransactionID).
			Str("status", record.Status).
			Msg("compensated payment could not be recorded")
	}

	s.logger.Warn().
		Str("transaction_id", record.TransactionID).
		Uint("application_id", record.ApplicationID).
		Str("status", record.Status).
		Msg("late payment compensated")

	s.notifier.Notify(Notice{
		UserID:    record.StudentID,
		Type:      models.NotificationPaymentRefunded,
		Title:     "Payment returned",
		Message:   fmt.Sprintf("Your payment of %d %s for %q could not be applied: %s.", record.Amount, record.Currency, tuition.Title, message),
		Link:      "/payments",
		Priority:  models.NotificationPriorityHigh,
		TuitionID: uintPtr(tuition.ID),
	})
	s.cache.Invalidate(ctx, record.StudentID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionPaymentCompensate,
		EntityType: "application",
		EntityID:   uintPtr(record.ApplicationID),
		Metadata: map[string]interface{}{
			"transaction_id": record.TransactionID,
			"amount":         record.Amount,
			"status":         record.Status,
			"cause":          cause,
		},
	})

	return outcome, errdefs.New(errdefs.ErrInvalidState, message)
}

// Refund asks the processor to return the money before reversing the
// acceptance, so a processor failure leaves the marketplace untouched.
func (s *acceptanceService) Refund(ctx context.Context, actor authz.Actor, paymentID uint, amount int64, reason string) (dto.PaymentResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleAdmin), "only admins can refund payments"); err != nil {
		return dto.PaymentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "acceptance.refund", trace.WithAttributes(
		attribute.Int64("payment.id", int64(paymentID)),
	))
	defer span.End()

	response, outcome, err := s.refund(ctx, actor, paymentID, amount, strings.TrimSpace(reason))
	observability.Refunds().WithLabelValues(outcome).Inc()
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		return dto.PaymentResponse{}, err
	}
	return response, nil
}

func (s *acceptanceService) refund(ctx context.Context, actor authz.Actor, paymentID uint, amount int64, reason string) (dto.PaymentResponse, string, error) {
	record, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return dto.PaymentResponse{}, "not_found", notFound(err, "payment not found")
	}
	if record.Status != models.PaymentStatusCompleted {
		return dto.PaymentResponse{}, "invalid_state", errdefs.Newf(errdefs.ErrInvalidState, "cannot refund a payment that is %s", record.Status)
	}
	if amount > record.Amount {
		return dto.PaymentResponse{}, "invalid_amount", errdefs.New(errdefs.ErrValidation, "refund amount exceeds the payment amount")
	}
	if reason == "" {
		reason = "Refunded by admin"
	}

	if _, err := s.gateway.Refund(ctx, payment.RefundRequest{
		Reference: record.TransactionID,
		Amount:    amount,
		Reason:    reason,
	}); err != nil {
		return dto.PaymentResponse{}, "gateway_error", fmt.Errorf("refund payment: %w", err)
	}

	result, err := s.acceptances.Refund(ctx, repository.RefundInput{
		PaymentID: record.ID,
		Amount:    amount,
		Reason:    reason,
		At:        s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			s.logger.Error().Err(err).Uint("payment_id", record.ID).Msg("processor refunded but reversal could not be applied")
			return dto.PaymentResponse{}, "invalid_state", errdefs.New(errdefs.ErrInvalidState, "payment state changed before the refund could be applied")
		}
		return dto.PaymentResponse{}, "error", err
	}

	refunded := result.Payment
	refunded.Tuition = record.Tuition
	refunded.Student = record.Student
	refunded.Tutor = record.Tutor

	title := "your tuition"
	if record.Tuition != nil {
		title = fmt.Sprintf("%q", record.Tuition.Title)
	}
	for _, userID := range []uint{record.StudentID, record.TutorID} {
		s.notifier.Notify(Notice{
			UserID:    userID,
			Type:      models.NotificationPaymentRefunded,
			Title:     "Payment refunded",
			Message:   fmt.Sprintf("The payment of %d %s for %s has been refunded.", refunded.RefundAmount, refunded.Currency, title),
			Link:      fmt.Sprintf("/payments/%d", record.ID),
			Priority:  models.NotificationPriorityHigh,
			TuitionID: uintPtr(record.TuitionID),
		})
	}

	s.cache.Invalidate(ctx, record.StudentID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionPaymentRefunded,
		EntityType: "payment",
		EntityID:   uintPtr(record.ID),
		Metadata: map[string]interface{}{
			"amount":            refunded.RefundAmount,
			"reason":            reason,
			"tuition_id":        result.ReopenedTuitionID,
			"reopened_siblings": result.ReopenedSiblings,
		},
	})

	return dto.NewPaymentResponse(refunded), "refunded", nil
}

func (s *acceptanceService) loadApplication(ctx context.Context, id uint) (models.Application, models.Tuition, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return models.Application{}, models.Tuition{}, notFound(err, "application not found")
	}
	if application.Tuition != nil {
		return application, *application.Tuition, nil
	}
	tuition, err := s.tuitions.GetByID(ctx, application.TuitionID)
	if err != nil {
		return models.Application{}, models.Tuition{}, notFound(err, "tuition not found")
	}
	return application, tuition, nil
}

// checkIntentMetadata rejects an intent that was opened for another
// application or by another student. application_id is mandatory.
func checkIntentMetadata(metadata map[string]string, application models.Application) error {
	if metadata[metadataApplicationID] == "" {
		return errdefs.New(errdefs.ErrValidation, "payment is not linked to an application")
	}
	expected := map[string]uint{
		metadataApplicationID: application.ID,
		metadataTuitionID:     application.TuitionID,
		metadataStudentID:     application.StudentID,
	}
	for key, id := range expected {
		value, ok := metadata[key]
		if !ok || value == "" {
			continue
		}
		if value != strconv.FormatUint(uint64(id), 10) {
			return errdefs.New(errdefs.ErrValidation, "payment does not belong to this application")
		}
	}
	return nil
}
