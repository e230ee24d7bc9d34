package application

import (
	"github.com/arenaops/go-arena/internal/domain"
)

// MergeActivity interleaves a contest's access and submission logs, both
// already ascending by timestamp, into one chronological feed.
//
// The merge is the standard two-pointer walk and is deterministic: at equal
// timestamps the submission stream drains first. Elements keep their
// intra-stream order and each appears exactly once.
//
// Raw addresses are replaced by small integers assigned in first-seen order
// within the merged output, so report consumers keep same-address grouping
// without ever seeing the addresses themselves.
func MergeActivity(accesses []domain.AccessEvent, submissions []domain.SubmissionEvent) []domain.ActivityEvent {
	n := len(accesses) + len(submissions)
	events := make([]domain.ActivityEvent, 0, n)
	raw := make([]string, 0, n)

	open := func(a domain.AccessEvent) {
		events = append(events, domain.ActivityEvent{
			Username: a.Username,
			Time:     a.Time,
			Kind:     domain.EventOpen,
		})
		raw = append(raw, a.IP)
	}
	submit := func(s domain.SubmissionEvent) {
		events = append(events, domain.ActivityEvent{
			Username:     s.Username,
			Time:         s.Time,
			Kind:         domain.EventSubmit,
			ProblemAlias: s.ProblemAlias,
		})
		raw = append(raw, s.IP)
	}

	i, j := 0, 0
	for i < len(accesses) && j < len(submissions) {
		if accesses[i].Time.Before(submissions[j].Time) {
			open(accesses[i])
			i++
		} else {
			submit(submissions[j])
			j++
		}
	}
	for ; i < len(accesses); i++ {
		open(accesses[i])
	}
	for ; j < len(submissions); j++ {
		submit(submissions[j])
	}

	// First-seen sequential integers stand in for addresses.
	mapping := make(map[string]int, len(raw))
	for k := range events {
		id, ok := mapping[raw[k]]
		if !ok {
			id = len(mapping)
			mapping[raw[k]] = id
		}
		events[k].IP = id
	}
	return events
}
