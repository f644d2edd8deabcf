package agreement

import (
	"context"
	"time"

	"griefing/internal/address"
	"griefing/internal/models"
)

// StartCountdown arms the deadline at now + countdown length.
// The deadline is write-once: a second call fails for every caller.
func (a *Agreement) StartCountdown(ctx context.Context, caller address.Address) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.st.hasDeadline {
		return time.Time{}, ErrDeadlineAlreadySet
	}
	if err := a.onlyStakerOrOperator(caller); err != nil {
		return time.Time{}, err
	}

	a.st.deadline = a.tmpl.clock.Now().Add(a.st.length)
	a.st.hasDeadline = true

	a.emit(ctx, models.EventDeadlineSet, map[string]interface{}{
		"deadline": a.st.deadline.Unix(),
	})
	return a.st.deadline, nil
}

// Length returns the countdown length
func (a *Agreement) Length() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.length
}

// Deadline returns the deadline and whether the countdown was started
func (a *Agreement) Deadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.deadline, a.st.hasDeadline
}

// IsOver reports whether the deadline exists and has been reached
func (a *Agreement) IsOver() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOver()
}

// TimeRemaining is zero once the deadline is reached and the full
// countdown length while the countdown has not started.
func (a *Agreement) TimeRemaining() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.st.hasDeadline {
		return a.st.length
	}
	if left := a.st.deadline.Sub(a.tmpl.clock.Now()); left > 0 {
		return left
	}
	return 0
}

// isOver requires a.mu
func (a *Agreement) isOver() bool {
	return a.st.hasDeadline && !a.tmpl.clock.Now().Before(a.st.deadline)
}
