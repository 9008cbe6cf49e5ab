// Package cache provides the validation result cache: a key-value store keyed
// by a stable digest of (document content, document type, active module set).
// Any backend failure degrades to a miss/no-op; a cache outage must never fail
// a validation.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
)

// Namespace prefixes every validation cache key, so Clear can target the
// validation entries without touching unrelated keys in a shared backend.
const Namespace = "veridoc:validation"

// Backend is the pluggable key-value store. Implementations must be safe for
// concurrent use; last-writer-wins on entries is acceptable because keys are
// content-addressed.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context, namespace string) (bool, error)
}

// Metrics receives hit/miss accounting. The orchestrator injects its metrics
// collaborator here; tests use NopMetrics.
type Metrics interface {
	CacheHit()
	CacheMiss()
}

// NopMetrics discards all accounting.
type NopMetrics struct{}

func (NopMetrics) CacheHit()  {}
func (NopMetrics) CacheMiss() {}

// Key derives the stable cache key for a validation request. The module id set
// is sorted first so [a,b] and [b,a] address the same entry. The composite is
// digested with BLAKE2b-256.
func Key(contentHash, documentType string, moduleIDs []string) string {
	ids := append([]string(nil), moduleIDs...)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(contentHash)
	b.WriteByte(0)
	b.WriteString(documentType)
	for _, id := range ids {
		b.WriteByte(0)
		b.WriteString(id)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return Namespace + ":" + hex.EncodeToString(sum[:])
}

// ResultCache is the typed layer the orchestrator talks to. It serializes
// ValidationResults through the backend and converts every backend fault into
// a miss (on read) or a no-op (on write).
type ResultCache struct {
	backend Backend
	ttl     time.Duration
	metrics Metrics
	logger  *slog.Logger
}

// NewResultCache wraps backend with the given default TTL.
func NewResultCache(backend Backend, ttl time.Duration, metrics Metrics) *ResultCache {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		metrics: metrics,
		logger:  slog.Default().With("component", "cache"),
	}
}

// Get fetches a cached ValidationResult. A backend error or a corrupt entry is
// reported as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*policy.ValidationResult, bool) {
	if c == nil || c.backend == nil {
		return nil, false
	}
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.DebugContext(ctx, "cache read degraded to miss", "error", err)
		c.metrics.CacheMiss()
		return nil, false
	}
	if !ok {
		c.metrics.CacheMiss()
		return nil, false
	}
	var result policy.ValidationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.DebugContext(ctx, "cache entry corrupt, treating as miss", "error", err)
		c.metrics.CacheMiss()
		return nil, false
	}
	c.metrics.CacheHit()
	return &result, true
}

// Set stores a ValidationResult best-effort. Failures are logged and dropped.
func (c *ResultCache) Set(ctx context.Context, key string, result *policy.ValidationResult) {
	if c == nil || c.backend == nil || result == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.DebugContext(ctx, "cache marshal failed", "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.DebugContext(ctx, "cache write dropped", "error", err)
	}
}

// Clear drops every entry in the validation namespace.
func (c *ResultCache) Clear(ctx context.Context) bool {
	if c == nil || c.backend == nil {
		return false
	}
	ok, err := c.backend.Clear(ctx, Namespace)
	if err != nil {
		c.logger.DebugContext(ctx, "cache clear failed", "error", err)
		return false
	}
	return ok
}
