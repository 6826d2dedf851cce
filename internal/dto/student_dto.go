package dto

import "time"

// StudentDashboardResponse summarises a student's tuitions, applications and spend.
type StudentDashboardResponse struct {
	Tuitions           StatusCounts          `json:"tuitions"`
	Applications       StatusCounts          `json:"applications"`
	TotalSpent         int64                 `json:"total_spent"`
	CompletedPayments  int64                 `json:"completed_payments"`
	RecentApplications []ApplicationResponse `json:"recent_applications"`
	GeneratedAt        time.Time             `json:"generated_at"`
	CacheHit           bool                  `json:"cache_hit"`
}

// StatusCounts maps a status to its row count plus the overall total.
type StatusCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// NewStatusCounts totals a status breakdown.
func NewStatusCounts(byStatus map[string]int64) StatusCounts {
	if byStatus == nil {
		byStatus = map[string]int64{}
	}
	var total int64
	for _, count := range byStatus {
		total += count
	}
	return StatusCounts{Total: total, ByStatus: byStatus}
}
