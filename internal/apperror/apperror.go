package apperror

import "github.com/pkg/errors"

// Sentinel errors shared across components. Handlers translate these into
// HTTP statuses; everything else wraps them with context via pkg/errors.
var (
	// ErrConfiguration means a required server-side credential or setting is
	// absent. Authentication fails closed on it.
	ErrConfiguration = errors.New("missing required configuration")

	// ErrUnauthenticated means both webhook credential channels failed.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound means an unknown payment id or redemption code.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a redemption code was already consumed.
	ErrConflict = errors.New("already used")

	// ErrNotAuthorized means the operation requires a paid payment.
	ErrNotAuthorized = errors.New("payment not confirmed")

	// ErrUpstream means the store or a gateway collaborator failed and the
	// outcome could not be confirmed.
	ErrUpstream = errors.New("upstream failure")

	// ErrGenerationExhausted means code generation ran out of collision
	// retries. The whole issuance request is safe to retry.
	ErrGenerationExhausted = errors.New("code generation exhausted")
)
