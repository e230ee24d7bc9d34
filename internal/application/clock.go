// Package application implements the contest engine: the clock policy,
// the access gate, ranking aggregation, scoreboard merging, activity
// merging, and the ContestService facade that ties them to the ports.
package application

import (
	"time"

	"github.com/arenaops/go-arena/internal/domain"
)

// ClockPolicy resolves absolute contest boundaries and per-contestant
// deadlines. It is pure: the single write it implies, recording a first
// access, lives behind ports.ContestStore.RecordFirstAccess.
type ClockPolicy struct {
	now func() time.Time
}

// NewClockPolicy creates a ClockPolicy using the real clock.
func NewClockPolicy() *ClockPolicy { return &ClockPolicy{now: time.Now} }

// NewClockPolicyAt creates a ClockPolicy with an injected clock. Tests use
// this to pin "now".
func NewClockPolicyAt(now func() time.Time) *ClockPolicy { return &ClockPolicy{now: now} }

// CheckStarted returns nil when the contest has started, or a
// NotStartedError carrying the start instant for client countdowns.
func (p *ClockPolicy) CheckStarted(contest *domain.Contest) error {
	if contest.HasStarted(p.now()) {
		return nil
	}
	return domain.NewNotStartedError(contest.Alias, contest.StartTime)
}

// Finished reports whether the contest has ended.
func (p *ClockPolicy) Finished(contest *domain.Contest) bool {
	return contest.HasFinished(p.now())
}

// Deadline resolves the contestant's personal deadline.
//
// Without a window length every contestant shares the contest finish time.
// With one, the deadline is min(finish, first access + window) and is only
// defined once the first access has been recorded: before that the contest
// has not started for that user and ok is false.
func (p *ClockPolicy) Deadline(contest *domain.Contest, participation *domain.Participation) (deadline time.Time, ok bool) {
	if contest.WindowLength == nil {
		return contest.FinishTime, true
	}
	if participation == nil || participation.FirstAccessTime == nil {
		return time.Time{}, false
	}
	personal := participation.FirstAccessTime.Add(*contest.WindowLength)
	if personal.After(contest.FinishTime) {
		return contest.FinishTime, true
	}
	return personal, true
}
