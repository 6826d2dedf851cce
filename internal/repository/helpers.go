package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

// ErrStaleState reports that a conditional update matched no row because the
// record left the expected state.
var ErrStaleState = errors.New("record state changed")

// ErrHasPayments reports that a record is referenced by payment history.
var ErrHasPayments = errors.New("record has payment history")

// Pagination bounds a list query.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) apply(query *gorm.DB) *gorm.DB {
	if p.PageSize <= 0 {
		return query
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * p.PageSize).Limit(p.PageSize)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "sqlstate 23505")
}

func likePattern(input string) string {
	return "%" + strings.ToLower(strings.TrimSpace(input)) + "%"
}

// countByColumn groups rows of query by column and returns the counts.
func countByColumn(query *gorm.DB, column string) (map[string]int64, error) {
	var rows []struct {
		Bucket string
		Total  int64
	}
	if err := query.Select(column + " AS bucket, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Bucket] = row.Total
	}
	return counts, nil
}
