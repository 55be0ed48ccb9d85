// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/patrickmn/go-cache"
)

const checkCacheKey = "last-check-result"

// CheckResult is what one registry check produces.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateNeeded   bool
}

// registryResponse is the minimal JSON shape spec.md §6 documents:
// `{version}`.
type registryResponse struct {
	Version string `json:"version"`
}

// Checker performs the periodic registry GET and numeric semver
// comparison. Concurrent Check calls are serialized: the first
// in-flight call does the real HTTP round trip; any call arriving
// while one is in flight, or shortly after one completed, gets the
// cached result back instead of hammering the registry.
//
// The cache is github.com/patrickmn/go-cache: unlike
// internal/message.Registry's per-entry callback timers (needed where
// expiry must *act*, see internal/interactive), a check result simply
// goes stale and should be evicted — a background-swept TTL cache is
// exactly that shape.
type Checker struct {
	HTTPClient     *http.Client
	RegistryURL    string
	CurrentVersion string

	mu     sync.Mutex
	inFlight chan struct{}
	cache  *cache.Cache
}

// NewChecker builds a Checker that caches the last result for ttl
// (spec.md doesn't name a value; CheckInterval is the natural choice
// since there's no point re-checking more often than the scheduler
// ticks).
func NewChecker(registryURL, currentVersion string, ttl time.Duration) *Checker {
	return &Checker{
		HTTPClient:     http.DefaultClient,
		RegistryURL:    registryURL,
		CurrentVersion: currentVersion,
		cache:          cache.New(ttl, ttl*2),
	}
}

// Check performs (or waits for an in-flight, or reuses a cached)
// version check.
func (c *Checker) Check(ctx context.Context) (CheckResult, error) {
	if cached, ok := c.cache.Get(checkCacheKey); ok {
		return cached.(CheckResult), nil
	}

	c.mu.Lock()
	if c.inFlight != nil {
		waitCh := c.inFlight
		c.mu.Unlock()
		<-waitCh
		if cached, ok := c.cache.Get(checkCacheKey); ok {
			return cached.(CheckResult), nil
		}
		return CheckResult{}, fmt.Errorf("update check: concurrent check produced no cached result")
	}
	done := make(chan struct{})
	c.inFlight = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = nil
		c.mu.Unlock()
		close(done)
	}()

	result, err := c.fetch(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	c.cache.Set(checkCacheKey, result, cache.DefaultExpiration)
	return result, nil
}

func (c *Checker) fetch(ctx context.Context) (CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RegistryURL, nil)
	if err != nil {
		return CheckResult{}, fmt.Errorf("build registry request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return CheckResult{}, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CheckResult{}, fmt.Errorf("registry returned %d", resp.StatusCode)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CheckResult{}, fmt.Errorf("decode registry response: %w", err)
	}

	needed, err := newerVersion(c.CurrentVersion, body.Version)
	if err != nil {
		return CheckResult{}, err
	}

	return CheckResult{
		CurrentVersion: c.CurrentVersion,
		LatestVersion:  body.Version,
		UpdateNeeded:   needed,
	}, nil
}

// newerVersion reports whether latest is strictly greater than
// current by numeric semver comparison.
func newerVersion(current, latest string) (bool, error) {
	curV, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("parse current version %q: %w", current, err)
	}
	latestV, err := semver.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("parse latest version %q: %w", latest, err)
	}
	return latestV.GreaterThan(curV), nil
}
