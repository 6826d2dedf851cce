package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/config"
	"github.com/noah-isme/tutorlink-api/internal/handler"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
	"github.com/noah-isme/tutorlink-api/internal/router"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/pkg/payment"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

type testServer struct {
	app           *fiber.App
	db            *gorm.DB
	gateway       *stubGateway
	notifications service.NotificationService
}

type serverOptions struct {
	production bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
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

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	gateway := newStubGateway()

	users := repository.NewUserRepository(db)
	tuitions := repository.NewTuitionRepository(db)
	applications := repository.NewApplicationRepository(db)
	payments := repository.NewPaymentRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, 64, logger)
	notifications.Start(ctx)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	auth := service.NewAuthService(users, validate, testSecret, time.Hour, logger)
	tuitionSvc := service.NewTuitionService(tuitions, validate, nil, activity, logger)
	applicationSvc := service.NewApplicationService(applications, tuitions, users, validate, notifications, nil, logger)
	acceptance := service.NewAcceptanceService(service.AcceptanceDeps{
		Acceptances:  repository.NewAcceptanceRepository(db),
		Applications: applications,
		Tuitions:     tuitions,
		Payments:     payments,
		Gateway:      gateway,
		Validator:    validate,
		Notifier:     notifications,
		Activity:     activity,
		Currency:     "bdt",
	}, logger)
	paymentSvc := service.NewPaymentService(payments, acceptance, validate, activity, logger)
	admin := service.NewAdminService(service.AdminDeps{
		Users:     users,
		Tuitions:  tuitions,
		Payments:  payments,
		Validator: validate,
		Notifier:  notifications,
		Activity:  activity,
	}, logger)
	dashboard := service.NewStudentDashboardService(tuitions, applications, payments, nil, logger)
	reviews := service.NewReviewService(service.ReviewDeps{
		Reviews:      repository.NewReviewRepository(db),
		Applications: applications,
		Users:        users,
		Validator:    validate,
		Notifier:     notifications,
		Activity:     activity,
	}, logger)

	cfg := config.Config{AppName: "TutorLink Test", AppEnv: "test"}
	app := fiber.New(fiber.Config{ErrorHandler: handler.NewErrorHandler(logger, !opts.production)})
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:             handler.NewAuthHandler(auth, nil, logger),
		UserHandler:             handler.NewUserHandler(service.NewUserService(users, validate, logger), logger),
		TuitionHandler:          handler.NewTuitionHandler(tuitionSvc, applicationSvc, logger),
		ApplicationHandler:      handler.NewApplicationHandler(applicationSvc, logger),
		PaymentHandler:          handler.NewPaymentHandler(acceptance, paymentSvc, logger),
		AdminHandler:            handler.NewAdminHandler(admin, paymentSvc, activity, logger),
		StudentDashboardHandler: handler.NewStudentDashboardHandler(dashboard, logger),
		NotificationHandler:     handler.NewNotificationHandler(notifications, logger, time.Second),
		ReviewHandler:           handler.NewReviewHandler(reviews, logger),
		Guards: handler.Guards{
			Authenticate: middleware.JWTProtected(testSecret),
			Identify:     middleware.JWTOptional(testSecret),
			Account:      middleware.AccountGuard(auth, logger),
		},
	})

	return &testServer{app: app, db: db, gateway: gateway, notifications: notifications}
}

func (s *testServer) seedUser(t *testing.T, role, email string) models.User {
	t.Helper()
	user := models.User{Name: strings.Split(email, "@")[0], Email: email, PasswordHash: "unused", Role: role, Status: models.UserStatusApproved}
	require.NoError(t, s.db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// do sends a JSON request and decodes the envelope. token may be empty.
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(payload))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

type stubGateway struct {
	mu            sync.Mutex
	seq           int
	confirmations map[string]payment.Confirmation
}

func newStubGateway() *stubGateway {
	return &stubGateway{confirmations: map[string]payment.Confirmation{}}
}

func (g *stubGateway) CreateIntent(_ context.Context, request payment.IntentRequest) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	id := fmt.Sprintf("pi_http_%d", g.seq)
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

func (g *stubGateway) Confirm(_ context.Context, reference string) (payment.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	confirmation, ok := g.confirmations[reference]
	if !ok {
		return payment.Confirmation{Reference: reference, Status: "requires_payment_method"}, nil
	}
	return confirmation, nil
}

func (g *stubGateway) Refund(_ context.Context, request payment.RefundRequest) (payment.Refund, error) {
	return payment.Refund{ID: "re_" + request.Reference, Status: "succeeded"}, nil
}
