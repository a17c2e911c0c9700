package practices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dentalops/dental-ai-platform/internal/phone"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

// Resolver maps an inbound call's or message's number to the owning practice.
// Lookups are cached because the voice-AI platform resolves the same number
// on every assistant-request, tool-call batch, and end-of-call event.
type Resolver struct {
	repo   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewResolver constructs a resolver. redisClient may be nil, in which case
// every lookup goes to the repository.
func NewResolver(repo Repository, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Resolver {
	if repo == nil {
		panic("practices: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{repo: repo, redis: redisClient, ttl: ttl, logger: logger}
}

func (r *Resolver) cacheKey(number string) string {
	return fmt.Sprintf("practice:by-number:%s", number)
}

// ByNumber resolves the practice owning the given number. Returns
// ErrPracticeNotFound when no practice matches; callers fall back to
// generic behavior.
func (r *Resolver) ByNumber(ctx context.Context, number string) (*Practice, error) {
	normalized := phone.NormalizeE164(number)
	if normalized == "" {
		return nil, ErrPracticeNotFound
	}

	if r.redis != nil {
		data, err := r.redis.Get(ctx, r.cacheKey(normalized)).Bytes()
		if err == nil {
			var p Practice
			if err := json.Unmarshal(data, &p); err == nil {
				return &p, nil
			}
			// Corrupt cache entry; fall through to the repository.
			r.logger.Warn("discarding corrupt resolver cache entry", "number", normalized)
		} else if err != redis.Nil {
			r.logger.Warn("resolver cache read failed", "error", err)
		}
	}

	p, err := r.repo.GetByNumber(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := r.redis.Set(ctx, r.cacheKey(normalized), data, r.ttl).Err(); err != nil {
				r.logger.Warn("resolver cache write failed", "error", err)
			}
		}
	}
	return p, nil
}

// Invalidate drops the cached entry for a number, e.g. after a settings change.
func (r *Resolver) Invalidate(ctx context.Context, number string) {
	if r.redis == nil {
		return
	}
	normalized := phone.NormalizeE164(number)
	if normalized == "" {
		return
	}
	if err := r.redis.Del(ctx, r.cacheKey(normalized)).Err(); err != nil {
		r.logger.Warn("resolver cache invalidate failed", "error", err)
	}
}
