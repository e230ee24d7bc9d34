package application

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/arenaops/go-arena/internal/domain"
	"github.com/arenaops/go-arena/internal/ports"
)

// Role is the privilege tier an access decision grants.
type Role int

// Privilege tiers, ordered. A grant at one tier implies the ones below it.
const (
	// RoleViewer may see the scoreboard but not enter the contest.
	RoleViewer Role = iota + 1

	// RoleContestant may enter the contest and submit.
	RoleContestant

	// RoleAdmin sees unrestricted scoreboards, activity reports, and may
	// mutate the contest.
	RoleAdmin
)

// Grant is a positive access decision.
type Grant struct {
	// Role is the tier the principal was admitted at.
	Role Role

	// ViaToken marks token-scoped access. Token grants never extend to
	// entering the contest, only to viewing it.
	ViaToken bool
}

// AccessGate decides whether a principal may view or enter a contest. It is
// deterministic: the same contest, principal, and token always produce the
// same decision against the same stored state.
type AccessGate struct {
	store   ports.ContestStore
	clock   *ClockPolicy
	metrics ports.MetricsCollector
}

// NewAccessGate creates an AccessGate. metrics may be nil.
func NewAccessGate(store ports.ContestStore, clock *ClockPolicy, metrics ports.MetricsCollector) *AccessGate {
	return &AccessGate{store: store, clock: clock, metrics: metrics}
}

// Check authorizes the principal against the contest, optionally holding a
// scoreboard token. On success it returns the granted tier; on denial the
// error is one of the taxonomy sentinels.
//
// Denials for private contests are masked: unless the principal holds an
// explicit grant record, the caller sees the same ErrNotFound it would get
// for a nonexistent alias, so private contests do not leak. A prior grant
// is a positive signal that disclosure is already safe, so with one the
// original denial reason (for example the not-started precondition) is
// surfaced unchanged.
func (g *AccessGate) Check(ctx context.Context, contest *domain.Contest, principal domain.Principal, token string) (Grant, error) {
	grant, err := g.decide(ctx, contest, principal, token)
	g.record(err)
	if err == nil {
		return grant, nil
	}
	if contest.Public || token != "" {
		return Grant{}, err
	}
	if !errors.Is(err, domain.ErrForbidden) && !errors.Is(err, domain.ErrPreconditionFailed) {
		// Storage failures and the like are never masked.
		return Grant{}, err
	}

	// Private contest, tokenless denial: mask existence unless the
	// principal was explicitly let in before.
	invited, invErr := g.hasExplicitGrant(ctx, contest, principal)
	if invErr != nil {
		return Grant{}, invErr
	}
	if invited {
		return Grant{}, err
	}
	return Grant{}, domain.NewNotFoundError(contest.Alias)
}

// decide applies the raw decision table, before privacy masking.
func (g *AccessGate) decide(ctx context.Context, contest *domain.Contest, principal domain.Principal, token string) (Grant, error) {
	if token != "" {
		return g.decideToken(contest, token)
	}

	admin, err := g.isContestAdmin(ctx, contest, principal)
	if err != nil {
		return Grant{}, err
	}
	if admin {
		return Grant{Role: RoleAdmin}, nil
	}

	if !contest.Public {
		invited, err := g.hasExplicitGrant(ctx, contest, principal)
		if err != nil {
			return Grant{}, err
		}
		if !invited {
			return Grant{}, domain.NewForbiddenError(contest.Alias, "not invited")
		}
	} else if contest.ContestantMustRegister {
		accepted, err := g.registrationAccepted(ctx, contest, principal)
		if err != nil {
			return Grant{}, err
		}
		if !accepted {
			return Grant{}, domain.NewForbiddenError(contest.Alias, "not registered")
		}
	}

	if err := g.clock.CheckStarted(contest); err != nil {
		return Grant{}, err
	}
	return Grant{Role: RoleContestant}, nil
}

// decideToken resolves token-scoped access. Tokens bypass the registration
// and not-started checks but never grant more than the tier the token
// itself encodes.
func (g *AccessGate) decideToken(contest *domain.Contest, token string) (Grant, error) {
	if tokenEqual(token, contest.ScoreboardAdminToken) {
		return Grant{Role: RoleAdmin, ViaToken: true}, nil
	}
	if tokenEqual(token, contest.ScoreboardToken) {
		return Grant{Role: RoleViewer, ViaToken: true}, nil
	}
	return Grant{}, domain.NewForbiddenError(contest.Alias, "invalid token")
}

func (g *AccessGate) isContestAdmin(ctx context.Context, contest *domain.Contest, principal domain.Principal) (bool, error) {
	if principal.Anonymous() {
		return false, nil
	}
	if principal.SystemAdmin {
		return true, nil
	}
	return g.store.IsContestAdmin(ctx, contest.ID, principal.UserID)
}

func (g *AccessGate) hasExplicitGrant(ctx context.Context, contest *domain.Contest, principal domain.Principal) (bool, error) {
	if principal.Anonymous() {
		return false, nil
	}
	return g.store.HasExplicitGrant(ctx, contest.ID, principal.UserID)
}

func (g *AccessGate) registrationAccepted(ctx context.Context, contest *domain.Contest, principal domain.Principal) (bool, error) {
	if principal.Anonymous() {
		return false, nil
	}
	req, err := g.store.GetRegistration(ctx, contest.ID, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return req.State == domain.RegistrationAccepted, nil
}

func (g *AccessGate) record(err error) {
	if g.metrics == nil {
		return
	}
	outcome := "allowed"
	if err != nil {
		outcome = "denied"
	}
	g.metrics.RecordCounter("access_decisions_total", 1, map[string]string{"outcome": outcome})
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

// tokenEqual compares tokens in constant time. Empty stored tokens never
// match.
func tokenEqual(presented, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
