package tools

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNoToken means a mutating call carried no bearer token.
	ErrNoToken = errors.New("tools: write token required")
	// ErrBadToken means the bearer token failed the hash check.
	ErrBadToken = errors.New("tools: write token rejected")
)

// Guard authorizes mutating tool calls against a bcrypt hash of the
// write token. An empty hash disables the guard, the development
// default.
type Guard struct {
	hash string
}

// NewGuard builds the guard from the configured token hash.
func NewGuard(writeTokenHash string) *Guard {
	return &Guard{hash: strings.TrimSpace(writeTokenHash)}
}

// Enabled reports whether mutating calls need a token.
func (g *Guard) Enabled() bool {
	return g != nil && g.hash != ""
}

// Authorize checks the request's bearer token against the hash.
func (g *Guard) Authorize(r *http.Request) error {
	if !g.Enabled() {
		return nil
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return ErrNoToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.hash), []byte(token)); err != nil {
		return ErrBadToken
	}
	return nil
}
