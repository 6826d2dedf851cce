package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

const recentApplicationsLimit = 5

// StudentDashboardService produces the per-student marketplace summary.
type StudentDashboardService interface {
	GetDashboard(ctx context.Context, actor authz.Actor) (dto.StudentDashboardResponse, error)
}

type studentDashboardService struct {
	tuitions     repository.TuitionRepository
	applications repository.ApplicationRepository
	payments     repository.PaymentRepository
	cache        *MarketplaceCache
	logger       zerolog.Logger
	now          func() time.Time
}

// NewStudentDashboardService builds the dashboard aggregator.
func NewStudentDashboardService(tuitions repository.TuitionRepository, applications repository.ApplicationRepository, payments repository.PaymentRepository, cache *MarketplaceCache, logger zerolog.Logger) StudentDashboardService {
	return &studentDashboardService{
		tuitions:     tuitions,
		applications: applications,
		payments:     payments,
		cache:        cache,
		logger:       logger.With().Str("component", "student_dashboard_service").Logger(),
		now:          time.Now,
	}
}

func (s *studentDashboardService) GetDashboard(ctx context.Context, actor authz.Actor) (dto.StudentDashboardResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students have a dashboard"); err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	studentID := actor.ID

	if cached, ok := s.cache.Dashboard(ctx, studentID); ok {
		s.logger.Debug().Uint("student_id", studentID).Msg("dashboard cache hit")
		cached.CacheHit = true
		return cached, nil
	}

	tuitionCounts, err := s.tuitions.CountByStatus(ctx, studentID)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	byStudent := repository.ApplicationFilter{StudentID: uintPtr(studentID)}
	applicationCounts, err := s.applications.CountByStatus(ctx, byStudent)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	byStudent.Pagination = repository.Pagination{Page: 1, PageSize: recentApplicationsLimit}
	recent, _, err := s.applications.List(ctx, byStudent)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	totals, err := s.payments.Totals(ctx, repository.PaymentFilter{
		StudentID: uintPtr(studentID),
		Status:    models.PaymentStatusCompleted,
	})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	response := dto.StudentDashboardResponse{
		Tuitions:           dto.NewStatusCounts(tuitionCounts),
		Applications:       dto.NewStatusCounts(applicationCounts),
		TotalSpent:         totals.Amount,
		CompletedPayments:  totals.Count,
		RecentApplications: dto.NewApplicationResponseSlice(recent),
		GeneratedAt:        s.now().UTC(),
	}

	s.cache.StoreDashboard(ctx, studentID, response)
	return response, nil
}
