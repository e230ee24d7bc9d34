package domain

import "time"

// AccessEvent is one entry of a contest's access log: a user opening the
// contest from some address.
type AccessEvent struct {
	Username string
	Time     time.Time
	IP       string
}

// SubmissionEvent is one entry of a contest's submission log.
type SubmissionEvent struct {
	Username     string
	Time         time.Time
	IP           string
	ProblemAlias string
}

// EventKind discriminates merged activity events.
type EventKind string

// Activity event kinds.
const (
	EventOpen   EventKind = "open"
	EventSubmit EventKind = "submit"
)

// ActivityEvent is one row of a merged, anonymized activity report.
type ActivityEvent struct {
	Username string
	Time     time.Time

	// IP is a small integer assigned in first-seen order within one report.
	// It preserves same-address grouping without exposing raw addresses.
	IP int

	Kind EventKind

	// ProblemAlias is set only for submit events.
	ProblemAlias string
}
