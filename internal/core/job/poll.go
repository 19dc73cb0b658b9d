package job

import (
	"time"

	"meal-plan-generator/internal/core/plan"
)

const (
	fastPollDelay     = 800 * time.Millisecond
	normalPollDelay   = 1800 * time.Millisecond
	slowPollDelay     = 3 * time.Second
	verySlowPollDelay = 6 * time.Second

	fastPollWindow   = 10 * time.Second
	normalPollWindow = 60 * time.Second
	dayLongRun       = 3 * time.Minute
	weekLongRun      = 6 * time.Minute
)

// NextPollDelay 依已等待時間決定下一次查詢間隔，越久越慢
func NextPollDelay(elapsed time.Duration, jobType plan.JobType) time.Duration {
	longRun := dayLongRun
	if jobType == plan.JobWeek {
		longRun = weekLongRun
	}

	switch {
	case elapsed < fastPollWindow:
		return fastPollDelay
	case elapsed < normalPollWindow:
		return normalPollDelay
	case elapsed < longRun:
		return slowPollDelay
	default:
		return verySlowPollDelay
	}
}
