// Package schedule decides whether a scoring run is due for a scope.
package schedule

import (
	"time"

	"github.com/tripnotes/spotrank/pkg/models"
)

// DefaultIntervalHours is the cadence applied to newly created scopes.
const DefaultIntervalHours uint = 1

// IsDue reports whether the scope needs a run at the given time.
// A scope is due when it has never run, or when at least
// interval_hours have elapsed since the last run started.
// Disabled scopes are never due; --force bypasses this check entirely
// but still advances last_run_at on completion.
func IsDue(setting *models.JobSetting, now time.Time) bool {
	if setting == nil || !setting.Enabled {
		return false
	}
	if setting.LastRunAtEpoch == nil {
		return true
	}
	elapsed := now.Sub(time.UnixMilli(*setting.LastRunAtEpoch))
	return elapsed >= time.Duration(setting.IntervalHours)*time.Hour
}
