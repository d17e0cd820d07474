package middleware

import (
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

// IdempotencyStore remembers the outcome of write requests by key.
//
// Reserve either returns the stored response for key, claims the key for a
// new in-flight request (reserved=true), or reports that another request holds
// it (both zero).
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (cached *CachedResponse, reserved bool, err error)
	Complete(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode  int         `json:"status_code"`
	Headers     http.Header `json:"headers"`
	Body        []byte      `json:"body"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

type memoryEntry struct {
	response    *CachedResponse
	fingerprint string
	createdAt   time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go store.cleanup()
	return store
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key, fingerprint string) (*CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && time.Since(e.createdAt) <= s.ttl {
		if e.response == nil {
			return nil, false, nil
		}
		return e.response, false, nil
	}

	s.entries[key] = &memoryEntry{fingerprint: fingerprint, createdAt: time.Now()}
	return nil, true, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.entries[key] = &memoryEntry{response: response, fingerprint: response.Fingerprint, createdAt: response.CreatedAt}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.response == nil {
		delete(s.entries, key)
	}
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, e := range s.entries {
				if time.Since(e.createdAt) > s.ttl {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// RedisIdempotencyStore shares idempotency keys between service instances.
// A pending marker holds the key while the first request runs.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

const idempotencyKeyPrefix = "agenda:idempotency:"

type redisEntry struct {
	Pending     bool            `json:"pending,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Response    *CachedResponse `json:"response,omitempty"`
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, fingerprint string) (*CachedResponse, bool, error) {
	marker, err := json.Marshal(redisEntry{Pending: true, Fingerprint: fingerprint})
	if err != nil {
		return nil, false, err
	}

	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, marker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Reserve(ctx, key, fingerprint)
	}
	if err != nil {
		return nil, false, err
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	if entry.Pending {
		return nil, false, nil
	}
	return entry.Response, false, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(redisEntry{Fingerprint: response.Fingerprint, Response: response})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKeyPrefix+key, raw, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// Stop is a no-op; the Redis client is owned by the config.
func (s *RedisIdempotencyStore) Stop() {}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response of a write request retried with
// the same key on the same route and body. A retry racing the original gets a
// 409 instead of reaching admission twice. Rejections are not stored, so a
// retry after capacity frees up is evaluated again. Store failures fail open.
func Idempotency(store IdempotencyStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					_ = httputil.WriteError(w, apperrors.TooLarge(tooLarge.Limit))
					return
				}
				_ = httputil.WriteError(w, apperrors.InvalidInput("Failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintBody(body)

			cached, reserved, err := store.Reserve(r.Context(), key, fingerprint)
			if err != nil {
				log.Warn("Idempotency store unavailable, serving without replay protection",
					"request_id", requestIDFrom(r),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case cached != nil && cached.Fingerprint != fingerprint:
				_ = httputil.WriteError(w, apperrors.InvalidInput("Idempotency-Key was already used with a different request body"))
				return
			case cached != nil:
				replayCachedResponse(w, cached)
				return
			case !reserved:
				_ = httputil.WriteError(w, apperrors.Conflict("A request with this Idempotency-Key is still in progress"))
				return
			}

			completed := false
			defer func() {
				if !completed {
					if err := store.Release(context.WithoutCancel(r.Context()), key); err != nil {
						log.Warn("Failed to release idempotency key", "request_id", requestIDFrom(r), "error", err)
					}
				}
			}()

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			err = store.Complete(context.WithoutCancel(r.Context()), key, &CachedResponse{
				StatusCode:  capture.statusCode,
				Headers:     w.Header().Clone(),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
			})
			if err != nil {
				log.Warn("Failed to store idempotent response", "request_id", requestIDFrom(r), "error", err)
				return
			}
			completed = true
		})
	}
}

// idempotencyKey scopes the client's key to the method and route.
func idempotencyKey(r *http.Request) string {
	if !requiresContentType(r.Method) {
		return ""
	}
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		return ""
	}
	return r.Method + " " + r.URL.Path + " " + key
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
