package identity

import (
	"context"
	"fmt"
	"log/slog"

	"redemption-service/internal/kv"
)

// Resolver maintains the alias -> canonical id mapping. Providers may refer
// to the same payment under several identifiers; everything downstream works
// on the canonical one.
type Resolver struct {
	store  kv.Store
	logger *slog.Logger
}

func NewResolver(store kv.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func aliasKey(id string) string {
	return fmt.Sprintf("alias:%s", id)
}

// RegisterAliases records each alias as pointing at canonicalID. Registration
// is idempotent; an alias already bound to a different canonical id keeps its
// first binding and the conflict is logged.
func (r *Resolver) RegisterAliases(ctx context.Context, canonicalID string, aliases []string) error {
	seen := map[string]bool{canonicalID: true}

	for _, alias := range aliases {
		if alias == "" || seen[alias] {
			continue
		}
		seen[alias] = true

		ok, err := r.store.SetIfAbsent(ctx, aliasKey(alias), canonicalID)
		if err != nil {
			return err
		}
		if ok {
			continue
		}

		existing, found, err := r.store.Get(ctx, aliasKey(alias))
		if err != nil {
			return err
		}
		if found && existing != canonicalID {
			r.logger.WarnContext(ctx, "Alias already bound to different canonical id",
				"alias", alias, "existing", existing, "requested", canonicalID)
		}
	}

	return nil
}

// Resolve maps id to its canonical id. Unknown ids resolve to themselves:
// providers frequently report the canonical id directly without it ever
// having been registered as an alias.
func (r *Resolver) Resolve(ctx context.Context, id string) (string, error) {
	canonical, found, err := r.store.Get(ctx, aliasKey(id))
	if err != nil {
		return "", err
	}
	if !found || canonical == "" {
		return id, nil
	}
	return canonical, nil
}
