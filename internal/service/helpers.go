package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// notFound maps a missing record onto the NotFound kind and passes other errors through.
func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errdefs.New(errdefs.ErrNotFound, message)
	}
	return err
}

func paginationMeta(page, pageSize int, total int64) dto.PaginationMeta {
	return dto.NewPaginationMeta(page, pageSize, total)
}

func uintPtr(value uint) *uint {
	return &value
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

func notifierOrDiscard(notifier Notifier) Notifier {
	if notifier == nil {
		return discardNotifier{}
	}
	return notifier
}
