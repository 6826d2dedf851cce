package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
	"github.com/noah-isme/tutorlink-api/pkg/payment"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tuition{},
		&models.Application{},
		&models.Payment{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.Review{},
	))
	return db
}

func setupTestCache(t *testing.T) (*MarketplaceCache, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewMarketplaceCache(client, time.Minute, time.Minute, testLogger()), server
}

func seedUser(t *testing.T, db *gorm.DB, role, email string) models.User {
	t.Helper()
	user := models.User{Name: strings.Split(email, "@")[0], Email: email, PasswordHash: "hash", Role: role, Status: models.UserStatusApproved}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedTuition(t *testing.T, db *gorm.DB, studentID uint, subject, approval, status string) models.Tuition {
	t.Helper()
	tuition := models.Tuition{
		StudentID:      studentID,
		Title:          subject + " tutor needed",
		Subject:        subject,
		Grade:          "Class 8",
		Location:       "Dhaka",
		Salary:         5000,
		DaysPerWeek:    3,
		TutoringType:   "Home Tutoring",
		Requirements:   "Patient and punctual",
		ApprovalStatus: approval,
		Status:         status,
	}
	require.NoError(t, db.Create(&tuition).Error)
	return tuition
}

func seedApplication(t *testing.T, db *gorm.DB, tuition models.Tuition, tutor models.User) models.Application {
	t.Helper()
	application := models.Application{
		TuitionID:      tuition.ID,
		TutorID:        tutor.ID,
		StudentID:      tuition.StudentID,
		Name:           tutor.Name,
		Email:          tutor.Email,
		Qualifications: "BSc in Mathematics with honours",
		Experience:     "3 years",
		ExpectedSalary: tuition.Salary,
		Status:         models.ApplicationStatusPending,
		AppliedAt:      time.Now(),
	}
	require.NoError(t, db.Create(&application).Error)
	return application
}

func actorOf(user models.User) authz.Actor {
	return authz.Actor{ID: user.ID, Role: user.Role}
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) typesFor(userID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, notice := range r.notices {
		if notice.UserID == userID {
			types = append(types, notice.Type)
		}
	}
	return types
}

// fakeGateway settles every intent it creates unless told otherwise.
type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	confirmations map[string]payment.Confirmation
	confirmErr    error
	refundErr     error
	refunds       []payment.RefundRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{confirmations: map[string]payment.Confirmation{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, request payment.IntentRequest) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	id := fmt.Sprintf("pi_test_%d", g.seq)
	g.confirmations[id] = payment.Confirmation{
		Reference: id,
		Succeeded: true,
		Status:    "succeeded",
		Amount:    request.Amount,
		Currency:  request.Currency,
		Metadata:  request.Metadata,
	}
	return payment.Intent{ID: id, ClientSecret: id + "_secret", Amount: request.Amount, Currency: request.Currency}, nil
}

func (g *fakeGateway) Confirm(_ context.Context, reference string) (payment.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.confirmErr != nil {
		return payment.Confirmation{}, g.confirmErr
	}
	confirmation, ok := g.confirmations[reference]
	if !ok {
		return payment.Confirmation{Reference: reference, Status: "requires_payment_method"}, nil
	}
	return confirmation, nil
}

func (g *fakeGateway) Refund(_ context.Context, request payment.RefundRequest) (payment.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refundErr != nil {
		return payment.Refund{}, g.refundErr
	}
	g.refunds = append(g.refunds, request)
	return payment.Refund{ID: "re_" + request.Reference, Status: "succeeded"}, nil
}

func (g *fakeGateway) settle(reference string, confirmation payment.Confirmation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmations[reference] = confirmation
}

// marketplace wires every service over one database.
type marketplace struct {
	db           *gorm.DB
	gateway      *fakeGateway
	notifier     *recordingNotifier
	cache        *MarketplaceCache
	users        repository.UserRepository
	tuitions     repository.TuitionRepository
	applications repository.ApplicationRepository
	payments     repository.PaymentRepository
	activity     ActivityService
	tuitionSvc   TuitionService
	applySvc     ApplicationService
	acceptSvc    AcceptanceService
	paymentSvc   PaymentService
	adminSvc     AdminService
	reviewSvc    ReviewService
}

func newMarketplace(t *testing.T, cache *MarketplaceCache) *marketplace {
	t.Helper()

	db := setupTestDB(t)
	m := &marketplace{
		db:           db,
		gateway:      newFakeGateway(),
		notifier:     &recordingNotifier{},
		cache:        cache,
		users:        repository.NewUserRepository(db),
		tuitions:     repository.NewTuitionRepository(db),
		applications: repository.NewApplicationRepository(db),
		payments:     repository.NewPaymentRepository(db),
	}
	validate := testValidator()

	m.activity = NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	m.tuitionSvc = NewTuitionService(m.tuitions, validate, cache, m.activity, testLogger())
	m.applySvc = NewApplicationService(m.applications, m.tuitions, m.users, validate, m.notifier, cache, testLogger())
	m.acceptSvc = NewAcceptanceService(AcceptanceDeps{
		Acceptances:  repository.NewAcceptanceRepository(db),
		Applications: m.applications,
		Tuitions:     m.tuitions,
		Payments:     m.payments,
		Gateway:      m.gateway,
		Validator:    validate,
		Notifier:     m.notifier,
		Cache:        cache,
		Activity:     m.activity,
		Currency:     "bdt",
	}, testLogger())
	m.paymentSvc = NewPaymentService(m.payments, m.acceptSvc, validate, m.activity, testLogger())
	m.adminSvc = NewAdminService(AdminDeps{
		Users:     m.users,
		Tuitions:  m.tuitions,
		Payments:  m.payments,
		Validator: validate,
		Notifier:  m.notifier,
		Cache:     cache,
		Activity:  m.activity,
	}, testLogger())
	m.reviewSvc = NewReviewService(ReviewDeps{
		Reviews:      repository.NewReviewRepository(db),
		Applications: m.applications,
		Users:        m.users,
		Validator:    validate,
		Notifier:     m.notifier,
		Activity:     m.activity,
	}, testLogger())
	return m
}
