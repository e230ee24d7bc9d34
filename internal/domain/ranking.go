package domain

// Score is a {points, penalty} pair. Points sort descending, penalty
// ascending; see CompareScores.
type Score struct {
	Points  float64
	Penalty float64
}

// Add accumulates another score into this one.
func (s *Score) Add(other Score) {
	s.Points += other.Points
	s.Penalty += other.Penalty
}

// CompareScores orders two scores for ranking purposes: higher points first,
// then lower penalty. It returns a negative value when a ranks before b,
// positive when after, and zero on a full tie. Callers must use a stable
// sort so full ties keep their input order.
func CompareScores(a, b Score) int {
	switch {
	case a.Points > b.Points:
		return -1
	case a.Points < b.Points:
		return 1
	case a.Penalty < b.Penalty:
		return -1
	case a.Penalty > b.Penalty:
		return 1
	default:
		return 0
	}
}

// ProblemResult is one user's outcome on one contest problem.
type ProblemResult struct {
	// Letter is the display label derived from the problem's order.
	Letter string

	// Alias identifies the problem.
	Alias string

	// Points is the best qualifying score earned on the problem.
	Points float64

	// Penalty is the problem's contribution to the user's penalty.
	Penalty float64

	// Runs is the number of submissions the user made on the problem.
	Runs int
}

// RankingEntry is one row of a single-contest ranking.
type RankingEntry struct {
	Username string

	// Total aggregates the per-problem results under the contest's scoring
	// and penalty policies.
	Total Score

	// Problems holds one result per contest problem, in display order,
	// zero-filled for problems the user never attempted.
	Problems []ProblemResult
}

// Ranking is the ordered outcome of aggregating one contest's submissions.
// It is derived state: recomputed on demand and cached, never persisted.
type Ranking struct {
	ContestAlias string

	// Entries are sorted points-descending, penalty-ascending, stable.
	Entries []RankingEntry

	// Frozen reports whether submissions past the freeze point were
	// excluded from this view.
	Frozen bool
}

// MergedEntry is one row of a cross-contest merged ranking.
type MergedEntry struct {
	Username string

	// Total accumulates weighted points and unweighted penalties across
	// every merged contest.
	Total Score

	// Contests maps every input contest alias to the user's (weighted)
	// score in it, zero-filled for contests the user skipped, so consumers
	// can render a dense matrix.
	Contests map[string]Score
}

// MergedRanking is the outcome of merging several contests' rankings.
type MergedRanking struct {
	// ContestAliases lists the merged contests in input order.
	ContestAliases []string

	// Entries are sorted with the same comparator as single rankings.
	Entries []MergedEntry
}

// ColumnName converts a zero-based problem order into its spreadsheet-style
// letter: A..Z, then AA, AB, and so on.
func ColumnName(idx int) string {
	var name []byte
	for idx >= 0 {
		name = append([]byte{byte('A' + idx%26)}, name...)
		idx = idx/26 - 1
	}
	return string(name)
}
