package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

// ContestDetails is the cached detail payload of a contest: the contest
// settings plus its problems labeled in display order.
type ContestDetails struct {
	Contest  domain.Contest
	Problems []LabeledProblem
}

// LabeledProblem is a contest problem together with its display letter.
type LabeledProblem struct {
	domain.ContestProblem

	// Letter is derived from the problem's order, A, B, ... Z, AA, ...
	Letter string
}

// ContestService is the engine facade. It authorizes every request through
// the AccessGate, serves aggregations through the cache coordinator, and
// invalidates cached results on mutation.
type ContestService struct {
	store    ports.ContestStore
	cache    ports.Cache
	identity ports.IdentityResolver
	metrics  ports.MetricsCollector

	clock      *ClockPolicy
	gate       *AccessGate
	aggregator *RankingAggregator
	merger     *ScoreboardMerger

	// reportLimiter throttles activity reports; the log scans behind them
	// are the most expensive reads the engine does.
	reportLimiter *rate.Limiter

	// listGeneration versions per-user contest list keys so they can all
	// be dropped at once when any contest's visibility or admin set
	// changes.
	listGeneration atomic.Int64

	tracer trace.Tracer
	cfg    Config
}

// NewContestService wires the engine together. metrics may be nil; every
// other dependency is required.
func NewContestService(
	store ports.ContestStore,
	cache ports.Cache,
	identity ports.IdentityResolver,
	metrics ports.MetricsCollector,
	cfg Config,
) *ContestService {
	clock := NewClockPolicy()
	aggregator := NewRankingAggregator(store, metrics)
	return &ContestService{
		store:         store,
		cache:         cache,
		identity:      identity,
		metrics:       metrics,
		clock:         clock,
		gate:          NewAccessGate(store, clock, metrics),
		aggregator:    aggregator,
		merger:        NewScoreboardMerger(store, aggregator),
		reportLimiter: rate.NewLimiter(rate.Limit(cfg.Limits.ReportRatePerSecond), cfg.Limits.ReportBurst),
		tracer:        otel.Tracer("arena/service"),
		cfg:           cfg,
	}
}

// Authenticate resolves an opaque credential into a principal. Unknown
// credentials yield the anonymous principal.
func (s *ContestService) Authenticate(ctx context.Context, authToken string) (domain.Principal, error) {
	return s.identity.Resolve(ctx, authToken)
}

// CheckAccess authorizes the principal against the contest named by alias.
// token, when non-empty, is a scoreboard token. The decision is
// deterministic for identical inputs and stored state.
func (s *ContestService) CheckAccess(ctx context.Context, alias string, principal domain.Principal, token string) (Grant, error) {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return Grant{}, err
	}
	return s.gate.Check(ctx, contest, principal, token)
}

// EnterContest records the principal's entry into the contest, creating
// the participation row and stamping its first access time. The stamp is
// atomic and idempotent: re-entering never moves an existing deadline.
// Token-scoped access cannot enter, only view.
func (s *ContestService) EnterContest(ctx context.Context, alias string, principal domain.Principal) (*domain.Participation, error) {
	if principal.Anonymous() {
		return nil, domain.NewForbiddenError(alias, "authentication required")
	}
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	grant, err := s.gate.Check(ctx, contest, principal, "")
	if err != nil {
		return nil, err
	}
	if grant.Role < RoleContestant || grant.ViaToken {
		return nil, domain.NewForbiddenError(alias, "viewer access cannot enter the contest")
	}
	return s.store.RecordFirstAccess(ctx, contest.ID, principal.UserID)
}

// ResolveDeadline returns the principal's personal submission deadline for
// the contest. ok is false while the contest has not started for the user,
// that is, a windowed contest the user never entered.
func (s *ContestService) ResolveDeadline(ctx context.Context, alias string, principal domain.Principal) (time.Time, bool, error) {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return time.Time{}, false, err
	}
	participation, err := s.store.GetParticipation(ctx, contest.ID, principal.UserID)
	if err != nil && !isNotFound(err) {
		return time.Time{}, false, err
	}
	deadline, ok := s.clock.Deadline(contest, participation)
	return deadline, ok, nil
}

// Details returns the contest's settings and labeled problems, through the
// cache. Access rules apply before the cache is consulted, so cached
// payloads never leak.
func (s *ContestService) Details(ctx context.Context, alias string, principal domain.Principal, token string) (*ContestDetails, error) {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Check(ctx, contest, principal, token); err != nil {
		return nil, err
	}

	value, err := s.cache.GetOrCompute(ctx, contestInfoKey(alias), s.cfg.Cache.ContestInfoTTL, func(ctx context.Context) (any, error) {
		problems, err := s.store.GetProblems(ctx, contest.ID)
		if err != nil {
			return nil, err
		}
		details := &ContestDetails{Contest: *contest, Problems: make([]LabeledProblem, len(problems))}
		for i, p := range problems {
			details.Problems[i] = LabeledProblem{ContestProblem: p, Letter: domain.ColumnName(p.Order)}
		}
		return details, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*ContestDetails), nil
}

// Scoreboard returns the contest's ranking as the principal is allowed to
// see it: unrestricted for admin-tier grants, frozen otherwise. A contest
// configured to show its scoreboard after the finish lifts the freeze for
// everyone once it ends. Results are cached per (contest, mode);
// concurrent misses coalesce into one computation.
func (s *ContestService) Scoreboard(ctx context.Context, alias string, principal domain.Principal, token string) (*domain.Ranking, error) {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	grant, err := s.gate.Check(ctx, contest, principal, token)
	if err != nil {
		return nil, err
	}

	unrestricted := grant.Role == RoleAdmin ||
		(contest.ShowScoreboardAfter && s.clock.Finished(contest))
	value, err := s.cache.GetOrCompute(ctx, scoreboardKey(alias, unrestricted), s.cfg.Cache.ScoreboardTTL, func(ctx context.Context) (any, error) {
		ranking, err := s.aggregator.Compute(ctx, contest, RankingMode{IncludeAllRuns: unrestricted})
		if err != nil {
			return nil, err
		}
		if unrestricted {
			s.persistTotals(ctx, contest, ranking)
		}
		return ranking, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.Ranking), nil
}

// persistTotals refreshes the denormalized score and penalty on each
// participation row from a full ranking. Best effort: a failed write never
// blocks the read that triggered it.
func (s *ContestService) persistTotals(ctx context.Context, contest *domain.Contest, ranking *domain.Ranking) {
	participations, err := s.store.ListParticipations(ctx, contest.ID)
	if err != nil {
		s.countEvent("participation_totals_errors")
		return
	}
	userIDs := make(map[string]int64, len(participations))
	for _, p := range participations {
		userIDs[p.Username] = p.UserID
	}
	for _, entry := range ranking.Entries {
		userID, ok := userIDs[entry.Username]
		if !ok {
			continue
		}
		if err := s.store.UpdateParticipationTotals(ctx, contest.ID, userID, entry.Total.Points, entry.Total.Penalty); err != nil {
			s.countEvent("participation_totals_errors")
			return
		}
	}
}

func (s *ContestService) countEvent(metric string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCounter(metric, 1, nil)
}

// MergeScoreboards combines the named contests' rankings under their
// weights and only-accepted flags, filtered to usernameFilter when
// non-empty. Every contest is aggregated in restricted mode with its own
// freeze applied before the merge.
func (s *ContestService) MergeScoreboards(ctx context.Context, principal domain.Principal, contests []MergeContest, usernameFilter []string) (*domain.MergedRanking, error) {
	if principal.Anonymous() {
		return nil, domain.NewForbiddenError("", "authentication required")
	}
	return s.merger.Merge(ctx, contests, usernameFilter)
}

// ActivityReport merges the contest's access and submission logs into one
// anonymized chronological feed. Admin-tier access is required; requests
// are throttled.
func (s *ContestService) ActivityReport(ctx context.Context, alias string, principal domain.Principal, token string) ([]domain.ActivityEvent, error) {
	ctx, span := s.tracer.Start(ctx, "activity.report")
	defer span.End()

	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	grant, err := s.gate.Check(ctx, contest, principal, token)
	if err != nil {
		return nil, err
	}
	if grant.Role != RoleAdmin {
		return nil, domain.NewForbiddenError(alias, "activity reports require admin access")
	}

	if err := s.reportLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	accesses, err := s.store.ListAccessLog(ctx, contest.ID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.store.ListSubmissionLog(ctx, contest.ID)
	if err != nil {
		return nil, err
	}
	return MergeActivity(accesses, submissions), nil
}

// CreateContest validates and persists a new contest. A zero scoreboard
// percentage defaults to 100. Alias collisions surface as
// domain.ErrDuplicateEntry, decided by the store.
func (s *ContestService) CreateContest(ctx context.Context, principal domain.Principal, contest *domain.Contest) error {
	if principal.Anonymous() {
		return domain.NewForbiddenError(contest.Alias, "authentication required")
	}
	// An unset percentage means a fully visible scoreboard; an explicitly
	// hidden board is configured through UpdateContest.
	if contest.ScoreboardPercentage == 0 {
		contest.ScoreboardPercentage = 100
	}
	if err := validateContestSettings(contest, s.cfg.Limits.MaxContestLength); err != nil {
		return err
	}
	if err := s.store.CreateContest(ctx, contest); err != nil {
		return err
	}
	s.invalidateLists()
	return nil
}

// UpdateContest validates and persists changes to a contest. Only contest
// admins may update; the start time is frozen once the contest has runs.
func (s *ContestService) UpdateContest(ctx context.Context, principal domain.Principal, contest *domain.Contest) error {
	existing, err := s.store.GetContestByAlias(ctx, contest.Alias)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, existing, principal); err != nil {
		return err
	}
	if err := validateContestSettings(contest, s.cfg.Limits.MaxContestLength); err != nil {
		return err
	}
	if !contest.StartTime.Equal(existing.StartTime) {
		runs, err := s.store.CountSubmissions(ctx, existing.ID)
		if err != nil {
			return err
		}
		if runs > 0 {
			ve := domain.NewValidationError("contest")
			ve.Add("start_time cannot change once the contest has runs")
			return ve
		}
	}
	contest.ID = existing.ID
	if err := s.store.UpdateContest(ctx, contest); err != nil {
		return err
	}
	s.invalidateContest(contest.Alias)
	s.invalidateLists()
	return nil
}

// AddProblem attaches a problem to the contest and drops its cached
// aggregations.
func (s *ContestService) AddProblem(ctx context.Context, principal domain.Principal, alias string, problem domain.ContestProblem) error {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, contest, principal); err != nil {
		return err
	}
	if problem.Points < 0 {
		ve := domain.NewValidationError("contest_problem")
		ve.Add("points must not be negative")
		return ve
	}
	if err := s.store.AddProblem(ctx, contest.ID, problem); err != nil {
		return err
	}
	s.invalidateContest(alias)
	return nil
}

// RemoveProblem detaches a problem from the contest and drops its cached
// aggregations.
func (s *ContestService) RemoveProblem(ctx context.Context, principal domain.Principal, alias string, problemID int64) error {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, contest, principal); err != nil {
		return err
	}
	if err := s.store.RemoveProblem(ctx, contest.ID, problemID); err != nil {
		return err
	}
	s.invalidateContest(alias)
	return nil
}

// Register files a pending registration request for a registration-gated
// contest. Re-registering while a request is pending or accepted is a
// no-op; a rejected user may file a fresh request.
func (s *ContestService) Register(ctx context.Context, alias string, principal domain.Principal) error {
	if principal.Anonymous() {
		return domain.NewForbiddenError(alias, "authentication required")
	}
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return err
	}
	if !contest.ContestantMustRegister {
		ve := domain.NewValidationError("registration")
		ve.Add("contest does not require registration")
		return ve
	}

	existing, err := s.store.GetRegistration(ctx, contest.ID, principal.UserID)
	if err != nil && !isNotFound(err) {
		return err
	}
	if existing != nil && existing.State != domain.RegistrationRejected {
		return nil
	}
	return s.store.CreateRegistration(ctx, &domain.RegistrationRequest{
		ContestID:   contest.ID,
		UserID:      principal.UserID,
		RequestedAt: time.Now(),
		State:       domain.RegistrationPending,
	})
}

// ArbitrateRegistration decides a pending registration request and appends
// the decision to the immutable history. Only contest admins arbitrate.
func (s *ContestService) ArbitrateRegistration(ctx context.Context, principal domain.Principal, alias string, targetUserID int64, accept bool, note string) error {
	contest, err := s.store.GetContestByAlias(ctx, alias)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, contest, principal); err != nil {
		return err
	}
	if _, err := s.store.GetRegistration(ctx, contest.ID, targetUserID); err != nil {
		if isNotFound(err) {
			ve := domain.NewValidationError("registration")
			ve.Add("user has no registration request for this contest")
			return ve
		}
		return err
	}
	return s.store.SaveRegistrationDecision(ctx, &domain.RegistrationDecision{
		ContestID: contest.ID,
		UserID:    targetUserID,
		AdminID:   principal.UserID,
		Accepted:  accept,
		Note:      note,
		Time:      time.Now(),
	})
}

// ListContests returns the contests visible to the principal, cached per
// viewer class: anonymous, admin, or the individual authenticated user.
func (s *ContestService) ListContests(ctx context.Context, principal domain.Principal) ([]domain.Contest, error) {
	value, err := s.cache.GetOrCompute(ctx, s.listKey(principal), s.cfg.Cache.ContestListTTL, func(ctx context.Context) (any, error) {
		return s.store.ListContests(ctx, principal)
	})
	if err != nil {
		return nil, err
	}
	return value.([]domain.Contest), nil
}

func (s *ContestService) requireAdmin(ctx context.Context, contest *domain.Contest, principal domain.Principal) error {
	admin, err := s.gate.isContestAdmin(ctx, contest, principal)
	if err != nil {
		return err
	}
	if !admin {
		return domain.NewForbiddenError(contest.Alias, "contest admin required")
	}
	return nil
}

// invalidateContest drops every cached aggregation keyed by the contest.
func (s *ContestService) invalidateContest(alias string) {
	s.cache.Invalidate(contestInfoKey(alias))
	s.cache.Invalidate(scoreboardKey(alias, true))
	s.cache.Invalidate(scoreboardKey(alias, false))
}

// invalidateLists drops the enumerable viewer-class list keys and bumps the
// generation that per-user keys embed, retiring those wholesale.
func (s *ContestService) invalidateLists() {
	s.listGeneration.Add(1)
	s.cache.Invalidate("contest-list:anonymous")
	s.cache.Invalidate("contest-list:admin")
}

func (s *ContestService) listKey(principal domain.Principal) string {
	switch {
	case principal.Anonymous():
		return "contest-list:anonymous"
	case principal.SystemAdmin:
		return "contest-list:admin"
	default:
		return fmt.Sprintf("contest-list:user:%d:g%d", principal.UserID, s.listGeneration.Load())
	}
}

func contestInfoKey(alias string) string { return "contest-info:" + alias }

func scoreboardKey(alias string, unrestricted bool) string {
	mode := "public"
	if unrestricted {
		mode = "admin"
	}
	return fmt.Sprintf("scoreboard:%s:%s", alias, mode)
}
