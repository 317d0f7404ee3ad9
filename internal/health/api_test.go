package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abnerjacobsen/das-sankhya/internal/cache"
	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *cache.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.Connect(context.Background(), config.RedisConfig{
		Enabled:         true,
		URL:             "redis://" + mr.Addr() + "/0",
		DialTimeout:     100 * time.Millisecond,
		PingTimeout:     100 * time.Millisecond,
		ConnectAttempts: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

// serve runs h behind the identifier middlewares
func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.IdempotencyKey(),
	)
	rec := httptest.NewRecorder()
	chain.Then(h).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestReadyForwardsIdentifiers(t *testing.T) {
	headers := make(chan http.Header, 1)
	dep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(dep.Close)

	_, redis := newRedis(t)
	api := NewAPI(newUpstream(t), dep.URL, redis)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	req.Header.Set("Idempotency-Key", "retry-7")
	rec := serve(api.ReadyHandler(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	got := <-headers
	assert.Equal(t, rec.Header().Get("X-Correlation-ID"), got.Get("X-Correlation-ID"))
	assert.NotEmpty(t, got.Get("X-Correlation-ID"))
	assert.Equal(t, "retry-7", got.Get("Idempotency-Key"))
}

func TestReadyUpstreamErrorStatusIsReachable(t *testing.T) {
	dep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(dep.Close)

	api := NewAPI(newUpstream(t), dep.URL, nil)
	rec := serve(api.ReadyHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyUpstreamUnreachable(t *testing.T) {
	dep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dep.URL
	dep.Close()

	_, redis := newRedis(t)
	api := NewAPI(newUpstream(t), deadURL, redis)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	req.Header.Set("X-Correlation-ID", "ckabcdefghijklmnopqrstuvw")
	rec := serve(api.ReadyHandler(), req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, http.StatusNotFound, body.Code)
	assert.Equal(t, "Could not connect to "+deadURL, body.Message)
	assert.Equal(t, "ckabcdefghijklmnopqrstuvw", body.CorrelationID)
	assert.Equal(t, "ckabcdefghijklmnopqrstuvw", rec.Header().Get("X-Correlation-ID"))
}

func TestReadyRedisDown(t *testing.T) {
	dep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(dep.Close)

	mr, redis := newRedis(t)
	mr.Close()

	api := NewAPI(newUpstream(t), dep.URL, redis)
	rec := serve(api.ReadyHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, http.StatusBadGateway, body.Code)
	assert.Equal(t, "Could not connect to Redis", body.Message)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyUpstreamCheckedBeforeRedis(t *testing.T) {
	dep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dep.URL
	dep.Close()

	mr, redis := newRedis(t)
	mr.Close()

	api := NewAPI(newUpstream(t), deadURL, redis)
	rec := serve(api.ReadyHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMicroservice(t *testing.T) {
	mr, redis := newRedis(t)

	api := NewAPI(nil, "", redis)

	rec := serve(api.MicroserviceHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/microservice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	mr.Close()

	rec = serve(api.MicroserviceHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/microservice", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Could not connect to Redis", decodeError(t, rec).Message)
}

func TestMicroserviceWithoutRedis(t *testing.T) {
	api := NewAPI(nil, "", nil)

	rec := serve(api.MicroserviceHandler(), httptest.NewRequest(http.MethodGet, "/api/v1/microservice", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
