package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Header names of the signed-request contract
const (
	HeaderAPIKey    = "X-VALR-API-KEY"
	HeaderTimestamp = "X-VALR-TIMESTAMP"
	HeaderSignature = "X-VALR-SIGNATURE"
)

// Defaults used when the gateway is built without explicit limits
const (
	DefaultWindow       = 30 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

// ErrForbidden is the single error reported for every rejected request
var ErrForbidden = errors.New("forbidden")

// used for unknown keys so the rejection costs the same as a bad signature
var dummySecret = []byte("unknown-api-key-placeholder-secret")

// KeyStore maps API keys to their shared secrets
type KeyStore map[string]string

// NewKeyStore creates a key store holding a single key pair
func NewKeyStore(key, secret string) KeyStore {
	return KeyStore{key: secret}
}

// Secret returns the shared secret for key
func (k KeyStore) Secret(key string) (string, bool) {
	secret, ok := k[key]
	return secret, ok
}

// Sign computes the lowercase hex HMAC-SHA512 of timestamp, verb, path and body
func Sign(secret, timestamp, verb, path string, body []byte) string {
	return hex.EncodeToString(mac([]byte(secret), timestamp, verb, path, body))
}

func mac(secret []byte, timestamp, verb, path string, body []byte) []byte {
	h := hmac.New(sha512.New, secret)
	h.Write([]byte(timestamp))
	h.Write([]byte(strings.ToUpper(verb)))
	h.Write([]byte(path))
	h.Write(body)
	return h.Sum(nil)
}

// Gateway authenticates signed requests
type Gateway struct {
	keys    KeyStore
	window  time.Duration
	maxBody int64
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithWindow sets how far a request timestamp may drift from the clock
func WithWindow(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithMaxBodyBytes caps the size of a signed body
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBody = n
		}
	}
}

// WithClock overrides the clock used for freshness checks
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger sets the logger used to record rejection reasons
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a new gateway for the given keys
func NewGateway(keys KeyStore, opts ...Option) *Gateway {
	g := &Gateway{
		keys:    keys,
		window:  DefaultWindow,
		maxBody: DefaultMaxBodyBytes,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify checks the signature headers of r against body. It returns
// ErrForbidden for every failure; the reason is only logged.
func (g *Gateway) Verify(r *http.Request, body []byte) (string, error) {
	if err := g.verify(r, body); err != nil {
		g.logger.Debug("request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		return "", ErrForbidden
	}
	return r.Header.Get(HeaderAPIKey), nil
}

func (g *Gateway) verify(r *http.Request, body []byte) error {
	if requiresJSON(r.Method) && !isJSON(r.Header.Get("Content-Type")) {
		return fmt.Errorf("content type %q is not application/json", r.Header.Get("Content-Type"))
	}

	key := r.Header.Get(HeaderAPIKey)
	timestamp := r.Header.Get(HeaderTimestamp)
	signature := r.Header.Get(HeaderSignature)
	if key == "" || timestamp == "" || signature == "" {
		return errors.New("missing authentication headers")
	}

	provided, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}

	secret := dummySecret
	s, known := g.keys.Secret(key)
	if known {
		secret = []byte(s)
	}
	valid := hmac.Equal(mac(secret, timestamp, r.Method, r.URL.EscapedPath(), body), provided)

	switch {
	case !known:
		return fmt.Errorf("unknown api key %q", key)
	case !valid:
		return errors.New("signature mismatch")
	}

	return g.checkFresh(timestamp)
}

func (g *Gateway) checkFresh(timestamp string) error {
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp: %w", err)
	}
	drift := g.now().Sub(time.UnixMilli(ms))
	if drift < 0 {
		drift = -drift
	}
	if drift > g.window {
		return fmt.Errorf("timestamp drift %s exceeds %s", drift, g.window)
	}
	return nil
}

// Middleware rejects unsigned or badly signed requests with a uniform 403.
// The body is read once, verified and handed on to next unchanged.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, g.maxBody+1))
		if err != nil || int64(len(body)) > g.maxBody {
			g.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("reason", "unreadable or oversized body"))
			Forbidden(w)
			return
		}
		r.Body.Close()

		if _, err := g.Verify(r, body); err != nil {
			Forbidden(w)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// Forbidden writes the uniform authentication failure response
func Forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"forbidden"}`))
}

func requiresJSON(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
