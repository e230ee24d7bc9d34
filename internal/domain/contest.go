// Package domain defines the core types of the contest engine: contests,
// participations, registrations, submissions, rankings, and the error
// taxonomy shared by every layer.
package domain

import (
	"time"
)

// PenaltyPolicy determines how per-problem penalties are combined into a
// contestant's total penalty.
type PenaltyPolicy string

// Supported penalty aggregation policies.
const (
	// PenaltySum adds the penalties of every scored problem.
	PenaltySum PenaltyPolicy = "sum"

	// PenaltyMax keeps only the largest per-problem penalty.
	PenaltyMax PenaltyPolicy = "max"
)

// PenaltyBasis determines the reference point a single problem's penalty is
// measured from.
type PenaltyBasis string

// Supported penalty bases.
const (
	// PenaltyFromContestStart measures minutes from the contest start to the
	// scoring submission.
	PenaltyFromContestStart PenaltyBasis = "contest_start"

	// PenaltyFromProblemOpen measures minutes from the contestant's first
	// access to the scoring submission.
	PenaltyFromProblemOpen PenaltyBasis = "problem_open"

	// PenaltyFromRuntime uses the scoring submission's runtime, in seconds.
	PenaltyFromRuntime PenaltyBasis = "runtime"

	// PenaltyNone disables penalties entirely.
	PenaltyNone PenaltyBasis = "none"
)

// Contest holds the settings that govern access windows, scoring, and
// scoreboard visibility for a single contest.
type Contest struct {
	// ID is the numeric database identity of the contest.
	ID int64

	// Alias is the unique, URL-safe identifier of the contest.
	Alias string `validate:"required,alias"`

	// Title is a human-readable name. Opaque to the engine.
	Title string `validate:"required,min=1,max=255"`

	// Description is free-form text. Opaque to the engine.
	Description string `validate:"required,max=10000"`

	// StartTime is the absolute instant the contest opens.
	StartTime time.Time

	// FinishTime is the absolute instant the contest closes. Never before
	// StartTime.
	FinishTime time.Time

	// WindowLength, when non-nil, gives each contestant an individual
	// deadline of first access plus the window, capped at FinishTime.
	// When nil every contestant shares FinishTime as the deadline.
	WindowLength *time.Duration

	// Public marks the contest as visible to everyone. Private contests are
	// only visible to admins and explicitly granted users.
	Public bool

	// ContestantMustRegister gates public contests behind an
	// admin-arbitrated registration request.
	ContestantMustRegister bool

	// ScoreboardPercentage is the fraction (0-100) of the contest duration
	// during which non-privileged viewers see scoreboard updates.
	// Submissions after that point are hidden until the contest ends.
	ScoreboardPercentage int `validate:"min=0,max=100"`

	// ShowScoreboardAfter lifts the freeze for everyone once the contest
	// ends. When false, non-privileged viewers keep seeing the frozen
	// standings even after FinishTime.
	ShowScoreboardAfter bool

	// PartialScore enables partial credit. When false a problem only scores
	// through an accepted submission.
	PartialScore bool

	// PenaltyPolicy combines per-problem penalties into the total.
	PenaltyPolicy PenaltyPolicy `validate:"required,oneof=sum max"`

	// PenaltyBasis anchors each per-problem penalty.
	PenaltyBasis PenaltyBasis `validate:"required,oneof=contest_start problem_open runtime none"`

	// ScoreboardToken grants read-only scoreboard access to anyone who
	// presents it. Unguessable.
	ScoreboardToken string

	// ScoreboardAdminToken grants unrestricted scoreboard access to anyone
	// who presents it. Unguessable.
	ScoreboardAdminToken string

	// Recommended is an admin-curated highlight flag. Opaque to the engine.
	Recommended bool

	// Languages restricts allowed submission languages. Empty means all.
	Languages []string
}

// Duration returns the length of the contest.
func (c *Contest) Duration() time.Duration { return c.FinishTime.Sub(c.StartTime) }

// HasStarted reports whether the contest has begun at the given instant.
func (c *Contest) HasStarted(now time.Time) bool { return !now.Before(c.StartTime) }

// HasFinished reports whether the contest has ended at the given instant.
func (c *Contest) HasFinished(now time.Time) bool { return !now.Before(c.FinishTime) }

// FreezeTime returns the instant after which submissions are hidden from
// non-privileged scoreboard views.
func (c *Contest) FreezeTime() time.Time {
	frac := time.Duration(c.ScoreboardPercentage) * c.Duration() / 100
	return c.StartTime.Add(frac)
}

// ContestProblem associates a problem with a contest, carrying the point
// value and display order the aggregator uses.
type ContestProblem struct {
	// ProblemID is the numeric identity of the problem.
	ProblemID int64

	// Alias is the problem's unique identifier.
	Alias string

	// Points is the maximum score the problem awards in this contest.
	Points float64

	// Order is the display position, starting at zero. Letters are derived
	// from it, never from point values.
	Order int
}

// Participation records a user's relationship with a contest. It is created
// lazily on the first authorized entry and never deleted while the contest
// exists.
type Participation struct {
	ContestID int64
	UserID    int64

	// Username is denormalized from the user row so aggregation can join
	// submissions (keyed by username) without extra lookups.
	Username string

	// FirstAccessTime is set exactly once, when the user first enters the
	// contest. Immutable afterwards; it anchors per-user deadlines.
	FirstAccessTime *time.Time

	// Score and Penalty are denormalized copies of the user's latest
	// ranking totals.
	Score   float64
	Penalty float64
}

// RegistrationState is the tri-state outcome of a registration request.
type RegistrationState string

// Registration request states.
const (
	RegistrationPending  RegistrationState = "pending"
	RegistrationAccepted RegistrationState = "accepted"
	RegistrationRejected RegistrationState = "rejected"
)

// RegistrationRequest is a user's petition to enter a registration-gated
// contest. At most one active request exists per (contest, user) pair.
type RegistrationRequest struct {
	ContestID   int64
	UserID      int64
	RequestedAt time.Time

	// State transitions pending -> accepted/rejected exactly once per
	// submitted request.
	State RegistrationState

	// DecidedBy is the admin user that arbitrated the request, zero while
	// pending.
	DecidedBy int64

	// Note is the admin's free-form arbitration note.
	Note string
}

// RegistrationDecision is one immutable entry in the append-only history of
// arbitrations for a registration request.
type RegistrationDecision struct {
	ContestID int64
	UserID    int64
	AdminID   int64
	Accepted  bool
	Note      string
	Time      time.Time
}

// SubmissionRecord is a read-only view of one judged submission. The engine
// never produces these; it only aggregates them.
type SubmissionRecord struct {
	ContestID    int64
	ProblemAlias string
	Username     string
	Time         time.Time

	// Verdict is the judge's outcome, "AC" for accepted.
	Verdict string

	// Score is the raw judge score in [0, 1].
	Score float64

	// ContestScore is Score scaled by the problem's point value.
	ContestScore float64

	// Runtime is the execution time of the submission.
	Runtime time.Duration
}

// Accepted reports whether the submission was judged accepted.
func (s *SubmissionRecord) Accepted() bool { return s.Verdict == "AC" }

// Principal identifies the actor behind a request after identity
// resolution. The zero value is the anonymous principal.
type Principal struct {
	// UserID is zero for anonymous principals.
	UserID int64

	// Username is empty for anonymous principals.
	Username string

	// SystemAdmin marks site-wide administrators, who bypass contest-level
	// access checks.
	SystemAdmin bool
}

// Anonymous reports whether the principal carries no authenticated identity.
func (p Principal) Anonymous() bool { return p.UserID == 0 }
