// Package ports defines the interfaces through which the contest engine
// consumes its collaborators: durable storage, the result cache, identity
// resolution, and metrics.
package ports

import (
	"context"

	"github.com/arenaops/go-arena/internal/domain"
)

// ContestStore is the data-access interface the engine reads contest state
// through. Implementations must translate their own failures into the
// domain taxonomy: unknown rows become domain.ErrNotFound, alias collisions
// become domain.ErrDuplicateEntry, and every other failure is wrapped into
// domain.ErrStorageUnavailable. Raw driver errors must never escape.
//
// All methods honor context cancellation and deadlines; callers supply
// timeouts.
type ContestStore interface {
	// GetContestByAlias looks a contest up by its unique alias.
	GetContestByAlias(ctx context.Context, alias string) (*domain.Contest, error)

	// CreateContest persists a new contest. An alias collision surfaces as
	// domain.ErrDuplicateEntry, decided by the store, never inferred from
	// error text.
	CreateContest(ctx context.Context, contest *domain.Contest) error

	// UpdateContest persists changes to an existing contest.
	UpdateContest(ctx context.Context, contest *domain.Contest) error

	// ListContests returns the contests visible to the given principal:
	// public ones for everybody, plus private ones the principal is
	// granted or administers. System admins see everything.
	ListContests(ctx context.Context, principal domain.Principal) ([]domain.Contest, error)

	// GetProblems returns the contest's problems sorted by display order.
	GetProblems(ctx context.Context, contestID int64) ([]domain.ContestProblem, error)

	// AddProblem attaches a problem to a contest with the given points and
	// display order.
	AddProblem(ctx context.Context, contestID int64, problem domain.ContestProblem) error

	// RemoveProblem detaches a problem from a contest.
	RemoveProblem(ctx context.Context, contestID, problemID int64) error

	// GetSubmissions returns every submission of the contest, ascending by
	// time.
	GetSubmissions(ctx context.Context, contestID int64) ([]domain.SubmissionRecord, error)

	// CountSubmissions returns the number of submissions in the contest.
	CountSubmissions(ctx context.Context, contestID int64) (int, error)

	// GetParticipation fetches the (contest, user) participation row, or
	// domain.ErrNotFound if the user never entered.
	GetParticipation(ctx context.Context, contestID, userID int64) (*domain.Participation, error)

	// ListParticipations returns every participation row of the contest.
	ListParticipations(ctx context.Context, contestID int64) ([]domain.Participation, error)

	// RecordFirstAccess sets the participation's first access time if and
	// only if it is not set yet, atomically, and returns the resulting row.
	// A second call for the same pair is a no-op returning the stored row:
	// concurrent first accesses must all observe the same value.
	RecordFirstAccess(ctx context.Context, contestID, userID int64) (*domain.Participation, error)

	// UpdateParticipationTotals stores the denormalized score and penalty
	// of a user's latest ranking row.
	UpdateParticipationTotals(ctx context.Context, contestID, userID int64, score, penalty float64) error

	// HasExplicitGrant reports whether the user was explicitly invited to
	// or has entered the (typically private) contest.
	HasExplicitGrant(ctx context.Context, contestID, userID int64) (bool, error)

	// IsContestAdmin reports whether the user administers the contest.
	IsContestAdmin(ctx context.Context, contestID, userID int64) (bool, error)

	// GetRegistration fetches the active registration request for the
	// (contest, user) pair, or domain.ErrNotFound.
	GetRegistration(ctx context.Context, contestID, userID int64) (*domain.RegistrationRequest, error)

	// CreateRegistration files a new pending registration request.
	CreateRegistration(ctx context.Context, request *domain.RegistrationRequest) error

	// SaveRegistrationDecision stores an arbitration outcome on the active
	// request and appends it to the immutable decision history.
	SaveRegistrationDecision(ctx context.Context, decision *domain.RegistrationDecision) error

	// ListAccessLog returns the contest's access events ascending by time.
	ListAccessLog(ctx context.Context, contestID int64) ([]domain.AccessEvent, error)

	// ListSubmissionLog returns the contest's submission events ascending
	// by time.
	ListSubmissionLog(ctx context.Context, contestID int64) ([]domain.SubmissionEvent, error)
}
