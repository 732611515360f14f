// Package auth stores the API bearer token.
package auth

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Makepad-fr/tada-client/internal/store/jsonstore"
)

const (
	credFileName = "credentials.json"
	envToken     = "TADA_TOKEN"
)

// TokenInfo describes the token in use.
type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional
}

// Store reads and writes credentials under Dir. The environment variable
// TADA_TOKEN always wins over the file.
type Store struct {
	Dir    string
	Getenv func(string) string
}

// DefaultStore uses ~/.tada.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return &Store{Dir: filepath.Join(home, ".tada"), Getenv: os.Getenv}, nil
}

func (s *Store) file() jsonstore.File[TokenInfo] {
	return jsonstore.File[TokenInfo]{Path: filepath.Join(s.Dir, credFileName), Perm: 0o600}
}

// Get returns the current token, or nil when not logged in.
func (s *Store) Get() (*TokenInfo, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if env := strings.TrimSpace(getenv(envToken)); env != "" {
		return &TokenInfo{Token: stripBearer(env), Source: "env"}, nil
	}

	ti, found, err := s.file().Load()
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if !found {
		return nil, nil
	}
	ti.Token = stripBearer(ti.Token)
	ti.Source = "file"
	return &ti, nil
}

// Token returns the bare token or "" when none is configured. Read errors
// count as "no token"; the server will answer 401.
func (s *Store) Token() string {
	ti, err := s.Get()
	if err != nil || ti == nil {
		return ""
	}
	return ti.Token
}

// Set saves token to the credentials file with owner-only permissions.
func (s *Store) Set(token string, expires *time.Time) error {
	token = strings.TrimSpace(stripBearer(strings.TrimLeft(token, " \t\r\n")))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	ti := TokenInfo{
		Token:     token,
		Source:    "file",
		CreatedAt: time.Now(),
		ExpiresAt: expires,
	}
	if err := s.file().Save(ti); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Delete removes the credentials file. A missing file is not an error.
func (s *Store) Delete() error {
	return s.file().Delete()
}

// Payload decodes the claims of a JWT without verifying it. Opaque tokens
// report false.
func Payload(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	seg := strings.TrimRight(parts[1], "=")
	dec, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return "", false
	}
	return string(dec), true
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
