package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// LoadOAuthToken reads a token saved by SaveOAuthToken.
func LoadOAuthToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token %q: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token %q: %w", path, err)
	}
	return &tok, nil
}

// SaveOAuthToken writes tok to path with owner-only permissions.
func SaveOAuthToken(path string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// PersistingTokenSource saves refreshed tokens back to disk so a restart does
// not need a new consent.
type PersistingTokenSource struct {
	path string
	base oauth2.TokenSource
	mu   sync.Mutex
	last string
}

// NewPersistingTokenSource wraps base.
func NewPersistingTokenSource(path string, base oauth2.TokenSource) *PersistingTokenSource {
	return &PersistingTokenSource{path: path, base: base}
}

func (p *PersistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveOAuthToken(p.path, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
