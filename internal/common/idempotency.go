package common

import (
	"context"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem rejects duplicate writes carrying the same Idempotency-Key header.
// The key is claimed in Redis with SetNX; a second request inside the TTL
// window gets 409.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func (i Idem) redisKey(header string) string {
	return "idem:" + Sha256Hex([]byte(header))
}

// Middleware enforces idempotency for write endpoints. Requests without the
// header pass through untouched.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := i.redisKey(header)
		claimed, err := i.R.SetNX(r.Context(), key, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// refresh expiry even if the handler panics mid-flight
			_ = i.R.Expire(context.Background(), key, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
