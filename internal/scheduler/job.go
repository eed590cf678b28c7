package scheduler

import (
	"context"
	"time"
)

// Job is one pipeline step the scheduler runs on a cron expression
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes one pass. A non-nil error is retried by the scheduler.
	Run(ctx context.Context) error

	// Schedule returns a cron expression with a leading seconds field, e.g.
	//   "0 15 17 * * 1-5"  weekdays 17:15, after the ECB reference rates
	//   "0 0 9 * * 6"      Saturdays 09:00, weekly forecast on the closed Friday
	Schedule() string
}

// JobResult is the outcome of one scheduled or manual run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory 작업별 보관 결과 수 (일 1회 기준 약 5개월)
const maxHistory = 100

// JobHistory keeps the most recent results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result and drops the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if n := len(h.Results) - maxHistory; n > 0 {
		h.Results = append([]JobResult(nil), h.Results[n:]...)
	}
}

// Latest returns the most recent result, nil before the first run
func (h *JobHistory) Latest() *JobResult {
	if len(h.Results) == 0 {
		return nil
	}
	r := h.Results[len(h.Results)-1]
	return &r
}

// LastWhere returns the start time of the most recent result with the given outcome
func (h *JobHistory) LastWhere(success bool) *time.Time {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if h.Results[i].Success == success {
			t := h.Results[i].StartTime
			return &t
		}
	}
	return nil
}

// Failures counts failed runs still in history
func (h *JobHistory) Failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// SuccessRate returns successful runs over all runs (0 when empty)
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-h.Failures()) / float64(len(h.Results))
}
