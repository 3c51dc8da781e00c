package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/counterpos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/counterpos-backend/pkg/redis"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotentReplayHeader  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 128

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// guardedRoute is a chi-style pattern; a {param} segment matches any single segment.
type guardedRoute struct {
	method  string
	pattern string
	ttl     time.Duration
}

// A retried sale must never charge stock twice, so orders keep their keys for a week.
var guardedRoutes = []guardedRoute{
	{method: http.MethodPost, pattern: "/api/v1/orders", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/inventory", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/inventory/{inventoryId}/adjust", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/inventory/{inventoryId}/restock", ttl: defaultIdempotencyTTL},
}

type storedResponse struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	BodyHash    string    `json:"body_hash"`
	StoredAt    time.Time `json:"stored_at"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on guarded routes.
// A nil store disables the guard.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// chi resolves the route pattern after this middleware runs, so match the raw path
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			guard.serve(w, r, next, ttl)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if err := validateIdempotencyKey(clientKey); err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	bodyHash := hashBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	stored, found, err := g.lookup(ctx, key)
	if err != nil {
		// the register keeps selling while the cache is unreachable
		g.warn(ctx, "idempotency.lookup_failed", err)
		next.ServeHTTP(w, r)
		return
	}
	if found {
		if stored.BodyHash != bodyHash {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with a different request body").
				WithDetails(map[string]any{"idempotency_key": clientKey}))
			return
		}
		replay(w, stored)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		// the client must be able to retry a failed sale under the same key
		return
	}
	g.persist(ctx, key, ttl, storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		BodyHash:    bodyHash,
		StoredAt:    time.Now().UTC(),
	})
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, bool, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false, err
	}
	return &stored, true, nil
}

func (g *idempotencyGuard) persist(ctx context.Context, key string, ttl time.Duration, stored storedResponse) {
	payload, err := json.Marshal(stored)
	if err != nil {
		g.warn(ctx, "idempotency.encode_failed", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.warn(ctx, "idempotency.persist_failed", err)
	}
}

func (g *idempotencyGuard) warn(ctx context.Context, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.WarnErr(ctx, msg, err)
}

func validateIdempotencyKey(key string) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
			WithDetails(map[string]any{"header": idempotencyHeader})
	}
	if len(key) > maxIdempotencyKeyLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long").
			WithDetails(map[string]any{"header": idempotencyHeader, "max_length": maxIdempotencyKeyLength})
	}
	return nil
}

// requestScope keeps keys from different cashiers and endpoints apart.
func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func replay(w http.ResponseWriter, stored *storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(idempotentReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routeTTL(method, path string) (time.Duration, bool) {
	for _, route := range guardedRoutes {
		if route.method == method && matchRoute(route.pattern, path) {
			return route.ttl, true
		}
	}
	return 0, false
}

func matchRoute(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
