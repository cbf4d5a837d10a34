// Package cache persists the most recent validated proposition batch and the
// image assets it references. The proposition slot is overwrite-only: it holds
// exactly the last batch written, never a merged history.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/pkg/log"
)

const (
	nsPropositions = "propositions"
	nsImages       = "images"

	// keyPropositions is the single durable slot for the last batch.
	keyPropositions = "propositions"

	metaEtag         = "etag"
	metaLastModified = "last-modified"
)

type PropositionCache struct {
	store    core.CacheService
	network  core.Network
	assetTTL time.Duration
}

func New(store core.CacheService, network core.Network, assetTTL time.Duration) *PropositionCache {
	return &PropositionCache{
		store:    store,
		network:  network,
		assetTTL: assetTTL,
	}
}

// CachePropositions unconditionally overwrites the proposition slot with the
// given batch. An empty batch writes "absent".
func (c *PropositionCache) CachePropositions(ctx context.Context, props []core.Proposition) {
	logger := log.FromCtx(ctx)

	if len(props) == 0 {
		if err := c.store.Remove(ctx, nsPropositions, keyPropositions); err != nil {
			logger.Warn().Err(err).Msg("failed to clear proposition cache")
		}
		return
	}

	data, err := json.Marshal(props)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to serialize propositions for caching")
		return
	}
	if err := c.store.Set(ctx, nsPropositions, keyPropositions, core.CacheEntry{Data: data}); err != nil {
		logger.Warn().Err(err).Msg("failed to write proposition cache")
		return
	}
	logger.Debug().Int("count", len(props)).Msg("cached propositions")
}

// GetCachedPropositions returns the slot's last-written batch. Absence and
// corruption both read as nil; a corrupt slot is not an error to propagate.
func (c *PropositionCache) GetCachedPropositions(ctx context.Context) []core.Proposition {
	logger := log.FromCtx(ctx)

	entry, err := c.store.Get(ctx, nsPropositions, keyPropositions)
	if err != nil {
		logger.Debug().Err(err).Msg("proposition cache unreadable, treating as absent")
		return nil
	}
	if entry == nil {
		return nil
	}

	var props []core.Proposition
	if err := json.Unmarshal(entry.Data, &props); err != nil {
		logger.Debug().Err(err).Msg("proposition cache corrupt, treating as absent")
		return nil
	}
	return props
}

// ArePropositionsCached reports whether the slot currently holds a batch.
func (c *PropositionCache) ArePropositionsCached(ctx context.Context) bool {
	return c.GetCachedPropositions(ctx) != nil
}

// CacheImageAssets issues one fire-and-forget fetch per distinct URL. An
// already cached asset with revalidation metadata is fetched conditionally and
// kept when the server reports not-modified. Completion is not awaited; a
// failed fetch is logged and does not retry.
func (c *PropositionCache) CacheImageAssets(ctx context.Context, urls []string) {
	logger := log.FromCtx(ctx)

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		c.fetchAsset(ctx, u)
	}
	if len(seen) > 0 {
		logger.Debug().Int("count", len(seen)).Msg("scheduled image asset downloads")
	}
}

func (c *PropositionCache) fetchAsset(ctx context.Context, url string) {
	logger := log.FromCtx(ctx)

	headers := map[string]string{}
	if entry, err := c.store.Get(ctx, nsImages, url); err == nil && entry != nil {
		if etag := entry.Metadata[metaEtag]; etag != "" {
			headers["If-None-Match"] = etag
		}
		if lm := entry.Metadata[metaLastModified]; lm != "" {
			headers["If-Modified-Since"] = lm
		}
	}

	c.network.FetchAsync(ctx, url, headers, func(resp core.HTTPResponse, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("image asset fetch failed")
			return
		}
		switch {
		case resp.Status == 304:
			// Existing entry stays valid; nothing to write.
			logger.Debug().Str("url", url).Msg("image asset not modified")
		case resp.Status >= 200 && resp.Status < 300:
			entry := core.CacheEntry{
				Data: resp.Body,
				Metadata: map[string]string{
					metaEtag:         resp.Headers["Etag"],
					metaLastModified: resp.Headers["Last-Modified"],
				},
			}
			if c.assetTTL > 0 {
				entry.Expiry = time.Now().Add(c.assetTTL)
			}
			if err := c.store.Set(ctx, nsImages, url, entry); err != nil {
				logger.Warn().Err(err).Str("url", url).Msg("failed to cache image asset")
				return
			}
			logger.Debug().Str("url", url).Int("bytes", len(resp.Body)).Msg("cached image asset")
		default:
			logger.Warn().Int("status", resp.Status).Str("url", url).Msg("image asset fetch rejected")
		}
	})
}

// GetImageAsset returns a cached asset body, if present.
func (c *PropositionCache) GetImageAsset(ctx context.Context, url string) ([]byte, bool) {
	entry, err := c.store.Get(ctx, nsImages, url)
	if err != nil || entry == nil {
		return nil, false
	}
	return entry.Data, true
}

// ClearCachedData removes the proposition slot and all cached image assets.
// In-flight downloads are not aborted; late results repopulate the cache.
func (c *PropositionCache) ClearCachedData(ctx context.Context) {
	logger := log.FromCtx(ctx)
	if err := c.store.Remove(ctx, nsPropositions, keyPropositions); err != nil {
		logger.Warn().Err(err).Msg("failed to clear proposition cache")
	}
	if err := c.store.RemoveNamespace(ctx, nsImages); err != nil {
		logger.Warn().Err(err).Msg("failed to clear image asset cache")
	}
}
