package ports

import (
	"context"

	"github.com/arenaops/go-arena/internal/domain"
)

// IdentityResolver turns a request credential into a principal.
type IdentityResolver interface {
	// Resolve maps an opaque auth token to the principal it identifies.
	// An empty or unknown token yields the zero (anonymous) principal,
	// not an error; only resolution infrastructure failures are errors.
	Resolve(ctx context.Context, authToken string) (domain.Principal, error)
}
