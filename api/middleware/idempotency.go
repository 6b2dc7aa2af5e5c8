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
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	pkgredis "github.com/freshmarket/grocery-backend/pkg/redis"
)

// IdempotencyHeader is the optional request header that enables replay.
const IdempotencyHeader = "Idempotency-Key"

const (
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

// idempotentRoutes lists the writes that honour IdempotencyHeader and how long
// their responses are kept.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/orders":        7 * 24 * time.Hour,
	http.MethodPost + " /api/cart/bulk-add": 24 * time.Hour,
}

// storedResponse is the JSON value kept in redis. Body is base64 on the wire.
type storedResponse struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response when a request repeats its
// Idempotency-Key with the same body, and rejects reuse with a different body.
// Requests without the header are served normally.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			ttl, tracked := idempotentRoutes[r.Method+" "+normalizedRoute(r)]
			if !tracked || store == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(key) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])
			storeKey := store.IdempotencyKey(callerScope(r), key)

			prior, err := lookupResponse(ctx, store, storeKey)
			switch {
			case err != nil:
				responses.WriteError(ctx, logg, w, err)
				return
			case prior != nil && prior.RequestHash != requestHash:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				return
			case prior != nil:
				prior.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// 5xx responses stay retryable under the same key.
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			saveResponse(ctx, logg, store, storeKey, ttl, storedResponse{
				Status:      capture.statusCode(),
				Body:        capture.body.Bytes(),
				ContentType: capture.Header().Get("Content-Type"),
				RequestHash: requestHash,
			})
		})
	}
}

func lookupResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, nil
}

func saveResponse(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string, ttl time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		// SetNX keeps the first response when two requests race on one key.
		_, err = store.SetNX(ctx, key, string(payload), ttl)
	}
	if err != nil {
		logg.Error(logg.WithField(ctx, "idempotency_key", key), "idempotency record not saved", err)
	}
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// callerScope keys records per caller so anonymous checkouts and signed-in
// users never share a key space.
func callerScope(r *http.Request) string {
	caller := "anon"
	if id := UserIDFromContext(r.Context()); id != 0 {
		caller = strconv.FormatUint(uint64(id), 10)
	}
	return caller + "|" + r.Method + "|" + r.URL.Path
}

// normalizedRoute uses the chi pattern once routing has run and the raw path
// before that, without a trailing slash.
func normalizedRoute(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
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

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
