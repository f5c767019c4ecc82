package storage

import "time"

// Recommendation is a stored course suggestion, upserted by (user, title).
type Recommendation struct {
	ID        string
	UserID    string
	Title     string
	Reason    string
	Priority  int
	IsViewed  bool
	CreatedAt time.Time
}

// AgentStats aggregates analytics events over a trailing window.
type AgentStats struct {
	TotalRequests      int     `json:"total_requests"`
	AvgExecutionTimeMS float64 `json:"avg_execution_time_ms"`
	SuccessRate        float64 `json:"success_rate"`
}
