package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"ppewatch/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

var (
	ErrIdempotencyConflict   = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is in progress")
)

type storedResponse struct {
	hash        string
	done        bool
	status      int
	contentType string
	body        []byte
}

// IdempotencyStore remembers responses to keyed write requests for ttl.
type IdempotencyStore struct {
	cache *cache.Cache
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{cache: cache.New(ttl, 2*ttl)}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func idempotencyKey(endpoint, key string) string {
	return endpoint + "|" + key
}

// Begin claims key for a request with requestHash. It returns the stored
// response when the same request already completed.
func (s *IdempotencyStore) Begin(endpoint, key, requestHash string) (*storedResponse, error) {
	k := idempotencyKey(endpoint, key)
	if err := s.cache.Add(k, &storedResponse{hash: requestHash}, cache.DefaultExpiration); err == nil {
		return nil, nil
	}
	v, ok := s.cache.Get(k)
	if !ok {
		// expired between Add and Get
		return s.Begin(endpoint, key, requestHash)
	}
	stored := v.(*storedResponse)
	if stored.hash != requestHash {
		return nil, ErrIdempotencyConflict
	}
	if !stored.done {
		return nil, ErrIdempotencyInProgress
	}
	return stored, nil
}

func (s *IdempotencyStore) Complete(endpoint, key, requestHash string, status int, contentType string, body []byte) {
	s.cache.Set(idempotencyKey(endpoint, key), &storedResponse{
		hash:        requestHash,
		done:        true,
		status:      status,
		contentType: contentType,
		body:        append([]byte(nil), body...),
	}, cache.DefaultExpiration)
}

// Release forgets a claimed key so the request can be retried.
func (s *IdempotencyStore) Release(endpoint, key string) {
	s.cache.Delete(idempotencyKey(endpoint, key))
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.buf.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the first response for POST requests that repeat an
// Idempotency-Key with an identical body. Server errors are not remembered.
func Idempotent(store *IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(key) > 255 {
				api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long", reqID)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "could not read request body", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			endpoint := r.Method + " " + r.URL.Path
			hash := RequestHash(body)
			stored, err := store.Begin(endpoint, key, hash)
			switch {
			case errors.Is(err, ErrIdempotencyConflict):
				api.Fail(w, http.StatusUnprocessableEntity, "idempotency_conflict", err.Error(), reqID)
				return
			case errors.Is(err, ErrIdempotencyInProgress):
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", err.Error(), reqID)
				return
			case stored != nil:
				if stored.contentType != "" {
					w.Header().Set("Content-Type", stored.contentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.status)
				_, _ = w.Write(stored.body)
				return
			}

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				store.Release(endpoint, key)
				return
			}
			store.Complete(endpoint, key, hash, capture.status, capture.Header().Get("Content-Type"), capture.buf.Bytes())
		})
	}
}
