package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

// StatusResponse is the body of a successful API readiness call
type StatusResponse struct {
	Status string `json:"status"`
}

// API serves the readiness endpoints under /api/v1
type API struct {
	upstream Getter
	readyURL string
	// redis is nil when Redis is disabled
	redis Pinger
}

// NewAPI creates the API readiness handlers.
// A nil redis skips the Redis check.
func NewAPI(upstream Getter, readyURL string, redis Pinger) *API {
	return &API{
		upstream: upstream,
		readyURL: readyURL,
		redis:    redis,
	}
}

// ReadyHandler checks the upstream dependency and then Redis.
// An unreachable upstream answers 404, an unreachable Redis answers 502.
func (a *API) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger.FromContext(ctx, "health.api").Info("started readiness check", logger.Fields{
			"idempotency_key": reqctx.IdempotencyKeyFrom(ctx),
		})

		if a.upstream != nil && a.readyURL != "" {
			err := a.track(ctx, "upstream", func(ctx context.Context) error {
				resp, err := a.upstream.Get(ctx, a.readyURL)
				if err != nil {
					return err
				}
				return resp.Body.Close()
			})
			if err != nil {
				middleware.WriteJSONError(w, r, http.StatusNotFound, fmt.Sprintf("Could not connect to %s", a.readyURL))
				return
			}
		}

		if !a.redisReady(ctx) {
			middleware.WriteJSONError(w, r, http.StatusBadGateway, "Could not connect to Redis")
			return
		}

		a.ok(w, r)
	}
}

// MicroserviceHandler checks Redis only
func (a *API) MicroserviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.redisReady(r.Context()) {
			middleware.WriteJSONError(w, r, http.StatusBadGateway, "Could not connect to Redis")
			return
		}
		a.ok(w, r)
	}
}

func (a *API) redisReady(ctx context.Context) bool {
	if a.redis == nil {
		return true
	}
	return a.track(ctx, "redis", a.redis.Ping) == nil
}

// track runs one dependency check and records its outcome
func (a *API) track(ctx context.Context, dependency string, check func(context.Context) error) error {
	start := time.Now()
	err := check(ctx)

	result := "ok"
	if err != nil {
		result = "fail"
		logger.FromContext(ctx, "health.api").Warn("dependency check failed", logger.Fields{
			"dependency": dependency,
			"error":      err.Error(),
		})
	}
	metrics.RecordDependencyCheck(dependency, result, time.Since(start))
	return err
}

func (a *API) ok(w http.ResponseWriter, r *http.Request) {
	if err := middleware.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"}); err != nil {
		logger.FromContext(r.Context(), "health.api").Error("failed to encode response", logger.Fields{
			"error": err.Error(),
		})
	}
}
