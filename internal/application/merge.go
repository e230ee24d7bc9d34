package application

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

// MergeContest names one contest to merge and how to weigh it.
type MergeContest struct {
	// Alias identifies the contest.
	Alias string

	// Weight scales the contest's points in the merged totals. Zero means
	// the default weight of 1.
	Weight float64

	// OnlyAccepted restricts the contest's ranking to accepted submissions.
	OnlyAccepted bool
}

// ScoreboardMerger combines several contests' rankings into one, applying
// per-contest weights and an optional username allow-list.
type ScoreboardMerger struct {
	store      ports.ContestStore
	aggregator *RankingAggregator
	tracer     trace.Tracer
}

// NewScoreboardMerger creates a ScoreboardMerger on top of an aggregator.
func NewScoreboardMerger(store ports.ContestStore, aggregator *RankingAggregator) *ScoreboardMerger {
	return &ScoreboardMerger{
		store:      store,
		aggregator: aggregator,
		tracer:     otel.Tracer("arena/merge"),
	}
}

// Merge computes every named contest's restricted ranking (each honoring
// its own only-accepted flag and its own freeze point) and accumulates
// them per user: weighted points, unweighted penalties. Users absent from
// a contest contribute zero for it, never an error, and every merged row
// carries an entry for every input alias so consumers can render a dense
// matrix. usernameFilter, when non-empty, is a case-folded exact-match
// allow-list applied before ordering.
func (m *ScoreboardMerger) Merge(ctx context.Context, contests []MergeContest, usernameFilter []string) (*domain.MergedRanking, error) {
	ctx, span := m.tracer.Start(ctx, "scoreboard.merge", trace.WithAttributes(
		attribute.Int("merge.contests", len(contests)),
	))
	defer span.End()

	if len(contests) == 0 {
		ve := domain.NewValidationError("merge")
		ve.Add("at least one contest alias is required")
		return nil, ve
	}

	aliases := make([]string, len(contests))
	rankings := make([]*domain.Ranking, len(contests))

	g, gctx := errgroup.WithContext(ctx)
	for i, mc := range contests {
		i, mc := i, mc
		g.Go(func() error {
			contest, err := m.store.GetContestByAlias(gctx, mc.Alias)
			if err != nil {
				return err
			}
			ranking, err := m.aggregator.Compute(gctx, contest, RankingMode{OnlyAccepted: mc.OnlyAccepted})
			if err != nil {
				return err
			}
			rankings[i] = ranking
			return nil
		})
		aliases[i] = mc.Alias
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := map[string]*domain.MergedEntry{}
	for i, ranking := range rankings {
		weight := contests[i].Weight
		if weight == 0 {
			weight = 1
		}
		for _, row := range ranking.Entries {
			entry, ok := merged[row.Username]
			if !ok {
				entry = &domain.MergedEntry{Username: row.Username, Contests: map[string]domain.Score{}}
				merged[row.Username] = entry
			}
			weighted := domain.Score{Points: row.Total.Points * weight, Penalty: row.Total.Penalty}
			entry.Contests[aliases[i]] = weighted
			entry.Total.Add(weighted)
		}
	}

	if len(usernameFilter) > 0 {
		fold := cases.Fold()
		allowed := make(map[string]struct{}, len(usernameFilter))
		for _, name := range usernameFilter {
			allowed[fold.String(name)] = struct{}{}
		}
		for username := range merged {
			if _, ok := allowed[fold.String(username)]; !ok {
				delete(merged, username)
			}
		}
	}

	// Dense matrix: every row exposes every input contest.
	for _, entry := range merged {
		for _, alias := range aliases {
			if _, ok := entry.Contests[alias]; !ok {
				entry.Contests[alias] = domain.Score{}
			}
		}
	}

	usernames := make([]string, 0, len(merged))
	for username := range merged {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	entries := make([]domain.MergedEntry, 0, len(usernames))
	for _, username := range usernames {
		entries = append(entries, *merged[username])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return domain.CompareScores(entries[i].Total, entries[j].Total) < 0
	})

	return &domain.MergedRanking{ContestAliases: aliases, Entries: entries}, nil
}
