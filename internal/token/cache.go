// Package token caches the App Connect bearer token between uploads.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// App Connect tokens are nominally valid for an hour. Caching for less
	// tolerates clock skew and avoids handing out a token that expires
	// mid-upload.
	defaultTTL = 50 * time.Minute

	// expiryMargin backs off the exp claim when the provider issues a JWT,
	// for the same reason.
	expiryMargin = 10 * time.Minute
)

// Source acquires a fresh bearer token from the provider.
type Source func(ctx context.Context) (string, error)

// Cache holds the current bearer token and its validity window. A cache
// miss triggers exactly one acquisition; concurrent callers share the
// in-flight result instead of issuing their own.
type Cache struct {
	source Source
	now    func() time.Time
	flight singleflight.Group

	mu        sync.Mutex
	value     string
	expiresAt time.Time
}

// NewCache creates a cache that acquires tokens through source.
func NewCache(source Source) *Cache {
	return &Cache{source: source, now: time.Now}
}

// Token returns the cached bearer token, acquiring a fresh one when none is
// cached or the validity window has lapsed. Acquisition failures leave the
// cache empty.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.flight.Do("token", func() (any, error) {
		// A caller queued behind a finished flight may find the cache
		// already populated.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		tok, err := c.source(ctx)
		if err != nil {
			return "", err
		}
		c.store(tok)
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token unconditionally. The next Token call
// re-acquires.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.value = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (c *Cache) store(tok string) {
	expiry := c.now().Add(defaultTTL)
	if exp, ok := jwtExpiry(tok); ok {
		if capped := exp.Add(-expiryMargin); capped.Before(expiry) {
			expiry = capped
		}
	}

	c.mu.Lock()
	c.value = tok
	c.expiresAt = expiry
	c.mu.Unlock()

	log.Debug().Time("expires_at", expiry).Msg("cached bearer token")
}

// jwtExpiry extracts the exp claim when the token happens to be a JWT.
// The token is not verified here; only its stated lifetime is of interest.
func jwtExpiry(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
