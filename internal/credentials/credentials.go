// Package credentials resolves the upstream API key at request time.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"deploy-chat/internal/integrations/paramstore"
)

// ErrNotConfigured means no credential exists. Callers treat it as an
// operator error rather than a transient failure.
var ErrNotConfigured = errors.New("credentials: api key not configured")

const fetchTimeout = 10 * time.Second

// Static is a key captured from the environment at startup.
type Static string

func (s Static) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if key == "" {
		return "", ErrNotConfigured
	}
	return key, nil
}

// tokenPayload is the JSON shape accepted for keys stored in SSM.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamStore reads the key from SSM on first use and caches it once it
// has been fetched successfully. Failed fetches are retried on the next call.
// Concurrent misses share one fetch; no lock is held while it runs.
type ParamStore struct {
	getter paramstore.Getter
	name   string

	fetches singleflight.Group
	mu      sync.RWMutex
	key     string
}

func NewParamStore(getter paramstore.Getter, name string) (*ParamStore, error) {
	if getter == nil {
		return nil, errors.New("credentials: paramstore getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("credentials: parameter name must not be empty")
	}
	return &ParamStore{getter: getter, name: name}, nil
}

func (p *ParamStore) APIKey(ctx context.Context) (string, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key != "" {
		return key, nil
	}

	// The shared fetch outlives any one caller's cancellation; each caller
	// still stops waiting when its own context ends.
	ch := p.fetches.DoChan(p.name, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return p.fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *ParamStore) fetch(ctx context.Context) (string, error) {
	raw, err := p.getter.GetParameter(ctx, p.name)
	if err != nil {
		if errors.Is(err, paramstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return "", fmt.Errorf("credentials: fetch %q: %w", p.name, err)
	}
	key, err := parseToken(raw)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.key = key
	p.mu.Unlock()
	return key, nil
}

// parseToken accepts either {"token":"..."} or the bare key.
func parseToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("credentials: unmarshal token payload: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", ErrNotConfigured
	}
	return raw, nil
}
