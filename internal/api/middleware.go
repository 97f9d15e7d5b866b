package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/auth"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/models"
)

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type profileKey struct{}

// ensureProfile creates the caller's profile on first sign-in and keeps it on the request context.
func (s *Server) ensureProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		profile, err := s.deps.Users.EnsureProfile(r.Context(), id.UID, id.Email, id.EmailVerified)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey{}, profile)))
	})
}

func profileFrom(ctx context.Context) *models.UserProfile {
	p, _ := ctx.Value(profileKey{}).(*models.UserProfile)
	return p
}

func uidFrom(ctx context.Context) string {
	id, _ := auth.IdentityFromContext(ctx)
	return id.UID
}

// rateLimiter keeps one token bucket per user.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

const maxTrackedLimiters = 10000

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxTrackedLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(uidFrom(r.Context())) {
			w.Header().Set("Retry-After", "60")
			httpx.WriteError(w, nil, apperror.RateLimited())
			return
		}
		next.ServeHTTP(w, r)
	})
}
