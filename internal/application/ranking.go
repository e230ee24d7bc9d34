package application

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

// RankingMode selects which submissions an aggregation may see.
type RankingMode struct {
	// IncludeAllRuns lifts the scoreboard freeze. Admin and final views set
	// it; restricted views leave it false and stop seeing submissions past
	// the freeze point.
	IncludeAllRuns bool

	// OnlyAccepted counts only accepted submissions even for partial-credit
	// contests. The scoreboard merger sets it per contest.
	OnlyAccepted bool
}

// RankingAggregator computes a single contest's ranking from its raw
// submission records. It is a pure function of durable state at read time;
// no mutable ranking state is kept between calls.
type RankingAggregator struct {
	store   ports.ContestStore
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewRankingAggregator creates a RankingAggregator. metrics may be nil.
func NewRankingAggregator(store ports.ContestStore, metrics ports.MetricsCollector) *RankingAggregator {
	return &RankingAggregator{
		store:   store,
		tracer:  otel.Tracer("arena/ranking"),
		metrics: metrics,
	}
}

// Compute aggregates the contest's submissions into an ordered ranking.
//
// For every user and problem the best qualifying submission wins: the whole
// point value through an accepted run for all-or-nothing contests, the
// highest contest-weighted score for partial-credit ones. Penalties follow
// the contest's basis and are combined per its policy. Rows are ordered
// points-descending then penalty-ascending; full ties keep a stable
// username order.
func (a *RankingAggregator) Compute(ctx context.Context, contest *domain.Contest, mode RankingMode) (*domain.Ranking, error) {
	ctx, span := a.tracer.Start(ctx, "ranking.compute", trace.WithAttributes(
		attribute.String("contest.alias", contest.Alias),
		attribute.Bool("ranking.include_all_runs", mode.IncludeAllRuns),
	))
	defer span.End()
	start := time.Now()

	problems, err := a.store.GetProblems(ctx, contest.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	submissions, err := a.store.GetSubmissions(ctx, contest.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	firstAccess := map[string]time.Time{}
	if contest.PenaltyBasis == domain.PenaltyFromProblemOpen {
		participations, err := a.store.ListParticipations(ctx, contest.ID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		for _, p := range participations {
			if p.FirstAccessTime != nil {
				firstAccess[p.Username] = *p.FirstAccessTime
			}
		}
	}

	ranking := a.aggregate(contest, problems, submissions, firstAccess, mode)

	if a.metrics != nil {
		a.metrics.RecordLatency("ranking_compute", time.Since(start), map[string]string{
			"contest": contest.Alias,
		})
	}
	return ranking, nil
}

// cell tracks one user's running outcome on one problem.
type cell struct {
	points  float64
	penalty float64
	runs    int
	scored  bool
	best    domain.SubmissionRecord
}

func (a *RankingAggregator) aggregate(
	contest *domain.Contest,
	problems []domain.ContestProblem,
	submissions []domain.SubmissionRecord,
	firstAccess map[string]time.Time,
	mode RankingMode,
) *domain.Ranking {
	problemIdx := make(map[string]int, len(problems))
	for i, p := range problems {
		problemIdx[p.Alias] = i
	}

	frozen := false
	freeze := contest.FreezeTime()

	users := map[string][]*cell{}
	rowFor := func(username string) []*cell {
		row, ok := users[username]
		if !ok {
			row = make([]*cell, len(problems))
			for i := range row {
				row[i] = &cell{}
			}
			users[username] = row
		}
		return row
	}

	for _, sub := range submissions {
		idx, ok := problemIdx[sub.ProblemAlias]
		if !ok {
			continue // problem since removed from the contest
		}
		if !mode.IncludeAllRuns && sub.Time.After(freeze) {
			frozen = true
			continue
		}

		c := rowFor(sub.Username)[idx]
		c.runs++

		if (mode.OnlyAccepted || !contest.PartialScore) && !sub.Accepted() {
			continue
		}
		score := sub.ContestScore
		if score <= 0 && !sub.Accepted() {
			continue
		}
		if !c.scored || score > c.points || (score == c.points && sub.Time.Before(c.best.Time)) {
			c.scored = true
			c.points = score
			c.best = sub
			c.penalty = a.problemPenalty(contest, sub, firstAccess)
		}
	}

	usernames := make([]string, 0, len(users))
	for username := range users {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	entries := make([]domain.RankingEntry, 0, len(usernames))
	for _, username := range usernames {
		entries = append(entries, buildEntry(contest, problems, username, users[username]))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return domain.CompareScores(entries[i].Total, entries[j].Total) < 0
	})

	return &domain.Ranking{ContestAlias: contest.Alias, Entries: entries, Frozen: frozen}
}

// problemPenalty derives one problem's penalty from its scoring submission.
func (a *RankingAggregator) problemPenalty(contest *domain.Contest, sub domain.SubmissionRecord, firstAccess map[string]time.Time) float64 {
	switch contest.PenaltyBasis {
	case domain.PenaltyFromContestStart:
		return elapsedMinutes(contest.StartTime, sub.Time)
	case domain.PenaltyFromProblemOpen:
		ref, ok := firstAccess[sub.Username]
		if !ok {
			ref = contest.StartTime
		}
		return elapsedMinutes(ref, sub.Time)
	case domain.PenaltyFromRuntime:
		return sub.Runtime.Seconds()
	default:
		return 0
	}
}

func buildEntry(contest *domain.Contest, problems []domain.ContestProblem, username string, row []*cell) domain.RankingEntry {
	entry := domain.RankingEntry{
		Username: username,
		Problems: make([]domain.ProblemResult, len(problems)),
	}
	for i, p := range problems {
		c := row[i]
		entry.Problems[i] = domain.ProblemResult{
			Letter:  domain.ColumnName(p.Order),
			Alias:   p.Alias,
			Points:  c.points,
			Penalty: c.penalty,
			Runs:    c.runs,
		}
		entry.Total.Points += c.points
		if !c.scored {
			continue
		}
		switch contest.PenaltyPolicy {
		case domain.PenaltyMax:
			entry.Total.Penalty = math.Max(entry.Total.Penalty, c.penalty)
		default:
			entry.Total.Penalty += c.penalty
		}
	}
	return entry
}

func elapsedMinutes(from, to time.Time) float64 {
	if to.Before(from) {
		return 0
	}
	return math.Floor(to.Sub(from).Minutes())
}
