// Package credential carries the caller's bearer token through a turn.
//
// The token travels as a context value so every goroutine that receives a
// context derived from the turn (tool invocations included) sees it. The
// owning turn clears it on exit; holders of the context observe an empty
// token afterwards.
package credential

import (
	"context"
	"strings"
	"sync"
)

type ctxKey struct{}

// Carrier owns one turn's credential.
type Carrier struct {
	mu      sync.RWMutex
	token   string
	cleared bool
	once    sync.Once
}

// Set binds token to a child of ctx and returns the carrier that owns it.
func Set(ctx context.Context, token string) (context.Context, *Carrier) {
	c := &Carrier{token: token}
	return context.WithValue(ctx, ctxKey{}, c), c
}

// Get returns the credential visible from ctx.
// The second result is false when none was set or it has been cleared.
func Get(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Carrier)
	if !ok || c == nil {
		return "", false
	}
	return c.Token()
}

// Token returns the carried credential.
func (c *Carrier) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cleared || c.token == "" {
		return "", false
	}
	return c.token, true
}

// Clear drops the credential. Only the first call has an effect.
func (c *Carrier) Clear() {
	c.once.Do(func() {
		c.mu.Lock()
		c.token = ""
		c.cleared = true
		c.mu.Unlock()
	})
}

// Cleared reports whether Clear has run.
func (c *Carrier) Cleared() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cleared
}

// Mask shortens a token for logging.
func Mask(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}

// FromHeader extracts the token of an Authorization header value.
// A value without the Bearer scheme is used as is.
func FromHeader(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
