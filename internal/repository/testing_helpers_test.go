package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
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

func completedPayment(tuition models.Tuition, application models.Application, reference string) *models.Payment {
	fee, share := models.SplitPlatformFee(tuition.Salary)
	now := time.Now()
	return &models.Payment{
		TuitionID:     tuition.ID,
		ApplicationID: application.ID,
		StudentID:     tuition.StudentID,
		TutorID:       application.TutorID,
		Amount:        tuition.Salary,
		Currency:      models.DefaultCurrency,
		PaymentMethod: models.PaymentMethodStripe,
		TransactionID: reference,
		Status:        models.PaymentStatusCompleted,
		PlatformFee:   fee,
		TutorReceives: share,
		CompletedAt:   &now,
	}
}
