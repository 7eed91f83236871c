// Package schedule parses user-supplied times ("2h", "18:30") and decides
// when deferred pod actions are due.
package schedule

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rp-cli/rp/internal/errors"
)

// Status enumerates scheduled task states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is a deferred action against a pod alias.
type Task struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Alias     string `json:"alias"`
	WhenEpoch int64  `json:"when_epoch"`
	Status    Status `json:"status"`
	CreatedAt string `json:"created_at"`
	LastError string `json:"last_error,omitempty"`
}

// When returns the execution time as a time.Time in the local zone.
func (t Task) When() time.Time {
	return time.Unix(t.WhenEpoch, 0)
}

// Due reports whether the task should execute: pending and its time has come.
func (t Task) Due(now time.Time) bool {
	return t.Status == StatusPending && t.WhenEpoch <= now.Unix()
}

// NewTask creates a pending task for the given action, alias, and time.
func NewTask(action, alias string, when, now time.Time) Task {
	return Task{
		ID:        newTaskID(),
		Action:    action,
		Alias:     alias,
		WhenEpoch: when.Unix(),
		Status:    StatusPending,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

// newTaskID returns a short random identifier (8 hex chars).
func newTaskID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to a time-derived id; collisions are survivable here.
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b[:])
}

// ParseWhen turns a user-supplied time expression into an absolute time.
// Accepted forms:
//   - a Go duration offset from now: "2h", "45m", "90s", "1h30m"
//   - wall-clock "HH:MM" — today, or tomorrow if already past
//   - "YYYY-MM-DD HH:MM" in the local zone
func ParseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New(errors.ErrSchedule,
			"Empty time expression",
			"Use a duration like 2h, a time like 18:30, or a date like 2024-06-01 18:30")
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, errors.New(errors.ErrSchedule,
				fmt.Sprintf("Duration must be positive: %s", s),
				"Use something like 30m or 2h")
		}
		return now.Add(d), nil
	}

	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		when := time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), 0, 0, now.Location())
		if !when.After(now) {
			when = when.AddDate(0, 0, 1)
		}
		return when, nil
	}

	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		if !t.After(now) {
			return time.Time{}, errors.New(errors.ErrSchedule,
				fmt.Sprintf("Time is in the past: %s", s),
				"Pick a future time")
		}
		return t, nil
	}

	return time.Time{}, errors.New(errors.ErrSchedule,
		fmt.Sprintf("Invalid time format: %s", s),
		"Use a duration (2h), a time (18:30), or a date (2024-06-01 18:30)")
}
