package application

import (
	"context"
	"sync"
	"time"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

// fakeStore is an in-memory ContestStore for engine tests.
type fakeStore struct {
	mu sync.Mutex

	now time.Time

	contests       map[string]*domain.Contest
	problems       map[int64][]domain.ContestProblem
	submissions    map[int64][]domain.SubmissionRecord
	participations map[int64]map[int64]*domain.Participation
	usernames      map[int64]string
	admins         map[int64]map[int64]bool
	grants         map[int64]map[int64]bool
	registrations  map[int64]map[int64]*domain.RegistrationRequest
	decisions      []domain.RegistrationDecision
	accessLog      map[int64][]domain.AccessEvent
	submissionLog  map[int64][]domain.SubmissionEvent

	// failWith, when set, makes every call fail with the given error.
	failWith error

	firstAccessCalls int
}

var _ ports.ContestStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:            time.Unix(10_000, 0).UTC(),
		contests:       map[string]*domain.Contest{},
		problems:       map[int64][]domain.ContestProblem{},
		submissions:    map[int64][]domain.SubmissionRecord{},
		participations: map[int64]map[int64]*domain.Participation{},
		usernames:      map[int64]string{},
		admins:         map[int64]map[int64]bool{},
		grants:         map[int64]map[int64]bool{},
		registrations:  map[int64]map[int64]*domain.RegistrationRequest{},
		accessLog:      map[int64][]domain.AccessEvent{},
		submissionLog:  map[int64][]domain.SubmissionEvent{},
	}
}

func (f *fakeStore) addContest(c *domain.Contest) *domain.Contest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = int64(len(f.contests) + 1)
	}
	f.contests[c.Alias] = c
	return c
}

func (f *fakeStore) addAdmin(contestID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admins[contestID] == nil {
		f.admins[contestID] = map[int64]bool{}
	}
	f.admins[contestID][userID] = true
}

func (f *fakeStore) addGrant(contestID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grants[contestID] == nil {
		f.grants[contestID] = map[int64]bool{}
	}
	f.grants[contestID][userID] = true
}

func (f *fakeStore) setRegistration(contestID, userID int64, state domain.RegistrationState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registrations[contestID] == nil {
		f.registrations[contestID] = map[int64]*domain.RegistrationRequest{}
	}
	f.registrations[contestID][userID] = &domain.RegistrationRequest{
		ContestID: contestID, UserID: userID, State: state, RequestedAt: f.now,
	}
}

func (f *fakeStore) GetContestByAlias(_ context.Context, alias string) (*domain.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	c, ok := f.contests[alias]
	if !ok {
		return nil, domain.NewNotFoundError(alias)
	}
	return c, nil
}

func (f *fakeStore) CreateContest(_ context.Context, c *domain.Contest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.contests[c.Alias]; ok {
		return domain.ErrDuplicateEntry
	}
	c.ID = int64(len(f.contests) + 1)
	f.contests[c.Alias] = c
	return nil
}

func (f *fakeStore) UpdateContest(_ context.Context, c *domain.Contest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.contests[c.Alias] = c
	return nil
}

func (f *fakeStore) ListContests(_ context.Context, principal domain.Principal) ([]domain.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.Contest
	for _, c := range f.contests {
		if c.Public || principal.SystemAdmin ||
			(!principal.Anonymous() && (f.grants[c.ID][principal.UserID] || f.admins[c.ID][principal.UserID])) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProblems(_ context.Context, contestID int64) ([]domain.ContestProblem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.problems[contestID], nil
}

func (f *fakeStore) AddProblem(_ context.Context, contestID int64, problem domain.ContestProblem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.problems[contestID] = append(f.problems[contestID], problem)
	return nil
}

func (f *fakeStore) RemoveProblem(_ context.Context, contestID, problemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	problems := f.problems[contestID]
	for i, p := range problems {
		if p.ProblemID == problemID {
			f.problems[contestID] = append(problems[:i:i], problems[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) GetSubmissions(_ context.Context, contestID int64) ([]domain.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.submissions[contestID], nil
}

func (f *fakeStore) CountSubmissions(_ context.Context, contestID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return len(f.submissions[contestID]), nil
}

func (f *fakeStore) GetParticipation(_ context.Context, contestID, userID int64) (*domain.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.participations[contestID][userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) ListParticipations(_ context.Context, contestID int64) ([]domain.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.Participation
	for _, p := range f.participations[contestID] {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) RecordFirstAccess(_ context.Context, contestID, userID int64) (*domain.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.firstAccessCalls++
	if f.participations[contestID] == nil {
		f.participations[contestID] = map[int64]*domain.Participation{}
	}
	p, ok := f.participations[contestID][userID]
	if !ok {
		p = &domain.Participation{ContestID: contestID, UserID: userID, Username: f.usernames[userID]}
		f.participations[contestID][userID] = p
	}
	if p.FirstAccessTime == nil {
		ts := f.now
		p.FirstAccessTime = &ts
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) UpdateParticipationTotals(_ context.Context, contestID, userID int64, score, penalty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.participations[contestID][userID]; ok {
		p.Score, p.Penalty = score, penalty
	}
	return nil
}

func (f *fakeStore) HasExplicitGrant(_ context.Context, contestID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	if f.grants[contestID][userID] {
		return true, nil
	}
	_, entered := f.participations[contestID][userID]
	return entered, nil
}

func (f *fakeStore) IsContestAdmin(_ context.Context, contestID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	return f.admins[contestID][userID], nil
}

func (f *fakeStore) GetRegistration(_ context.Context, contestID, userID int64) (*domain.RegistrationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	req, ok := f.registrations[contestID][userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (f *fakeStore) CreateRegistration(_ context.Context, req *domain.RegistrationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if f.registrations[req.ContestID] == nil {
		f.registrations[req.ContestID] = map[int64]*domain.RegistrationRequest{}
	}
	clone := *req
	f.registrations[req.ContestID][req.UserID] = &clone
	return nil
}

func (f *fakeStore) SaveRegistrationDecision(_ context.Context, decision *domain.RegistrationDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	req, ok := f.registrations[decision.ContestID][decision.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	req.State = domain.RegistrationRejected
	if decision.Accepted {
		req.State = domain.RegistrationAccepted
	}
	req.DecidedBy = decision.AdminID
	req.Note = decision.Note
	f.decisions = append(f.decisions, *decision)
	return nil
}

func (f *fakeStore) ListAccessLog(_ context.Context, contestID int64) ([]domain.AccessEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.accessLog[contestID], nil
}

func (f *fakeStore) ListSubmissionLog(_ context.Context, contestID int64) ([]domain.SubmissionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.submissionLog[contestID], nil
}

// fakeCache memoizes forever and counts producer runs and invalidations.
type fakeCache struct {
	mu          sync.Mutex
	values      map[string]any
	computes    map[string]int
	invalidated []string
	passthrough bool
}

var _ ports.Cache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]any{}, computes: map[string]int{}}
}

func (c *fakeCache) GetOrCompute(ctx context.Context, key string, _ time.Duration, producer ports.Producer) (any, error) {
	c.mu.Lock()
	if v, ok := c.values[key]; ok && !c.passthrough {
		c.mu.Unlock()
		return v, nil
	}
	c.computes[key]++
	c.mu.Unlock()

	v, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
	return v, nil
}

func (c *fakeCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	c.invalidated = append(c.invalidated, key)
}

// fakeIdentity resolves a fixed token table.
type fakeIdentity struct {
	principals map[string]domain.Principal
}

var _ ports.IdentityResolver = (*fakeIdentity)(nil)

func (f *fakeIdentity) Resolve(_ context.Context, authToken string) (domain.Principal, error) {
	return f.principals[authToken], nil
}
