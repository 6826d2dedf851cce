package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

func TestNotificationRepositoryReadTracking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	user := seedUser(t, db, models.UserRoleTutor, "tutor@example.com")
	other := seedUser(t, db, models.UserRoleTutor, "other@example.com")

	var first models.Notification
	for i, title := range []string{"Accepted", "Rejected", "Payment"} {
		notification := models.Notification{UserID: user.ID, Type: models.NotificationSystemAlert, Title: title, Message: "body"}
		require.NoError(t, repo.Create(context.Background(), &notification))
		if i == 0 {
			first = notification
		}
	}
	require.NoError(t, repo.Create(context.Background(), &models.Notification{UserID: other.ID, Type: models.NotificationSystemAlert, Title: "Other", Message: "body"}))

	unread, err := repo.CountUnread(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), unread)

	_, err = repo.MarkRead(context.Background(), first.ID, other.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	marked, err := repo.MarkRead(context.Background(), first.ID, user.ID)
	require.NoError(t, err)
	require.True(t, marked.IsRead)

	items, total, err := repo.ListByUser(context.Background(), user.ID, true, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	affected, err := repo.MarkAllRead(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	unread, err = repo.CountUnread(context.Background(), user.ID)
	require.NoError(t, err)
	require.Zero(t, unread)
}
