package savedstate

import (
	"context"
	"fmt"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
)

// Open returns the Store selected by settings.
func Open(ctx context.Context, s *config.Settings) (Store, error) {
	switch s.StateStore {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, s.RedisAddr, DefaultRedisTTL)
	case "mongo":
		st, err := NewMongoStore(ctx, s.MongoURI, s.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown state store %q", s.StateStore)
	}
}
