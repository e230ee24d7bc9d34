package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestContest_HasStarted(t *testing.T) {
	start := mustParse(t, "2026-03-01T10:00:00Z")
	contest := &Contest{StartTime: start, FinishTime: start.Add(5 * time.Hour)}

	assert.False(t, contest.HasStarted(start.Add(-time.Second)))
	assert.True(t, contest.HasStarted(start))
	assert.True(t, contest.HasStarted(start.Add(time.Minute)))
}

func TestContest_HasFinished(t *testing.T) {
	start := mustParse(t, "2026-03-01T10:00:00Z")
	contest := &Contest{StartTime: start, FinishTime: start.Add(5 * time.Hour)}

	assert.False(t, contest.HasFinished(contest.FinishTime.Add(-time.Second)))
	assert.True(t, contest.HasFinished(contest.FinishTime))
	assert.True(t, contest.HasFinished(contest.FinishTime.Add(time.Minute)))
}

func TestContest_FreezeTime(t *testing.T) {
	start := mustParse(t, "2026-03-01T10:00:00Z")
	contest := &Contest{
		StartTime:            start,
		FinishTime:           start.Add(4 * time.Hour),
		ScoreboardPercentage: 75,
	}

	assert.Equal(t, start.Add(3*time.Hour), contest.FreezeTime())

	contest.ScoreboardPercentage = 100
	assert.Equal(t, contest.FinishTime, contest.FreezeTime())

	contest.ScoreboardPercentage = 0
	assert.Equal(t, contest.StartTime, contest.FreezeTime())
}

func TestSubmissionRecord_Accepted(t *testing.T) {
	assert.True(t, (&SubmissionRecord{Verdict: "AC"}).Accepted())
	assert.False(t, (&SubmissionRecord{Verdict: "WA"}).Accepted())
	assert.False(t, (&SubmissionRecord{Verdict: "TLE"}).Accepted())
}

func TestPrincipal_Anonymous(t *testing.T) {
	assert.True(t, Principal{}.Anonymous())
	assert.False(t, Principal{UserID: 7, Username: "ana"}.Anonymous())
}
