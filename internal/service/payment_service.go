package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

// PaymentService serves payment history, revenue and the admin override.
type PaymentService interface {
	ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.StudentPaymentsResponse, error)
	Revenue(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.TutorRevenueResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.PaymentResponse, error)
	AdminList(ctx context.Context, actor authz.Actor, req dto.AdminPaymentListRequest) (dto.PaymentListResponse, error)
	AdminUpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.AdminPaymentStatusRequest) (dto.PaymentResponse, error)
}

// Refunder reverses a completed payment.
type Refunder interface {
	Refund(ctx context.Context, actor authz.Actor, paymentID uint, amount int64, reason string) (dto.PaymentResponse, error)
}

type paymentService struct {
	payments  repository.PaymentRepository
	refunder  Refunder
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewPaymentService constructs the payment read service.
func NewPaymentService(payments repository.PaymentRepository, refunder Refunder, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) PaymentService {
	return &paymentService{
		payments:  payments,
		refunder:  refunder,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "payment_service").Logger(),
	}
}

func (s *paymentService) ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.StudentPaymentsResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students make payments"); err != nil {
		return dto.StudentPaymentsResponse{}, err
	}

	page, pageSize = normalizePage(page, pageSize)
	filter := repository.PaymentFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		StudentID:  uintPtr(actor.ID),
	}

	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return dto.StudentPaymentsResponse{}, err
	}

	filter.Status = models.PaymentStatusCompleted
	totals, err := s.payments.Totals(ctx, filter)
	if err != nil {
		return dto.StudentPaymentsResponse{}, err
	}

	return dto.StudentPaymentsResponse{
		Items:      dto.NewPaymentResponseSlice(payments),
		Pagination: paginationMeta(page, pageSize, total),
		TotalSpent: totals.Amount,
	}, nil
}

func (s *paymentService) Revenue(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.TutorRevenueResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleTutor), "only tutors earn revenue"); err != nil {
		return dto.TutorRevenueResponse{}, err
	}

	page, pageSize = normalizePage(page, pageSize)
	filter := repository.PaymentFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		TutorID:    uintPtr(actor.ID),
		Status:     models.PaymentStatusCompleted,
	}

	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return dto.TutorRevenueResponse{}, err
	}
	totals, err := s.payments.Totals(ctx, filter)
	if err != nil {
		return dto.TutorRevenueResponse{}, err
	}

	return dto.TutorRevenueResponse{
		Items:        dto.NewPaymentResponseSlice(payments),
		Pagination:   paginationMeta(page, pageSize, total),
		TotalRevenue: totals.TutorReceives,
		PlatformFees: totals.PlatformFee,
		Gross:        totals.Amount,
	}, nil
}

func (s *paymentService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.PaymentResponse, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return dto.PaymentResponse{}, notFound(err, "payment not found")
	}
	gate := authz.AnyOf(authz.IsOwner(payment.StudentID), authz.IsOwner(payment.TutorID), authz.HasRole(authz.RoleAdmin))
	if err := authz.Require(actor, gate, "you cannot view this payment"); err != nil {
		return dto.PaymentResponse{}, err
	}
	return dto.NewPaymentResponse(payment), nil
}

func (s *paymentService) AdminList(ctx context.Context, actor authz.Actor, req dto.AdminPaymentListRequest) (dto.PaymentListResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleAdmin), "only admins can list all payments"); err != nil {
		return dto.PaymentListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	payments, total, err := s.payments.List(ctx, repository.PaymentFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		Status:     strings.TrimSpace(req.Status),
	})
	if err != nil {
		return dto.PaymentListResponse{}, err
	}

	return dto.PaymentListResponse{
		Items:      dto.NewPaymentResponseSlice(payments),
		Pagination: paginationMeta(page, pageSize, total),
	}, nil
}

// AdminUpdateStatus routes refunds through the reversal and refuses any other
// move into or out of completed.
func (s *paymentService) AdminUpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.AdminPaymentStatusRequest) (dto.PaymentResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleAdmin), "only admins can change payment status"); err != nil {
		return dto.PaymentResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PaymentResponse{}, err
	}

	if req.Status == models.PaymentStatusRefunded {
		return s.refunder.Refund(ctx, actor, id, req.RefundAmount, req.RefundReason)
	}

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return dto.PaymentResponse{}, notFound(err, "payment not found")
	}
	if payment.Status == req.Status {
		return dto.NewPaymentResponse(payment), nil
	}
	if req.Status == models.PaymentStatusCompleted {
		return dto.PaymentResponse{}, errdefs.New(errdefs.ErrInvalidState, "payments complete only through payment confirmation")
	}
	if payment.Status == models.PaymentStatusCompleted || payment.Status == models.PaymentStatusRefunded {
		return dto.PaymentResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "cannot move a %s payment to %s", payment.Status, req.Status)
	}

	previous := payment.Status
	if err := s.payments.TransitionStatus(ctx, id, previous, req.Status); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.PaymentResponse{}, errdefs.New(errdefs.ErrInvalidState, "payment status changed concurrently")
		}
		return dto.PaymentResponse{}, err
	}
	payment.Status = req.Status

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionPaymentStatus,
		EntityType: "payment",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"from": previous, "to": req.Status},
	})

	return dto.NewPaymentResponse(payment), nil
}
