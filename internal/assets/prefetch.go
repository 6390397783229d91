package assets

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"vidforge/internal/domain"
	"vidforge/internal/filtergraph"
)

const prefetchConcurrency = 4

// Prefetch resolves every remote source a timeline references, in
// parallel. One failed download does not abort the rest; the first error
// is returned alongside whatever succeeded so the caller can report it.
func (c *Cache) Prefetch(ctx context.Context, urls []string) (filtergraph.AssetIndex, error) {
	index := make(filtergraph.AssetIndex, len(urls))
	var (
		mu       sync.Mutex
		firstErr error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	for _, url := range urls {
		url := url
		g.Go(func() error {
			path, err := c.Get(ctx, url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				c.logger.Warn().Str("url", url).Err(err).Msg("assets: prefetch failed")
				return nil
			}
			index[url] = path
			return nil
		})
	}
	g.Wait()
	return index, firstErr
}

// CollectSources lists every remote source the timeline references:
// clip media, the background image and the soundtrack.
func CollectSources(t domain.Timeline) []string {
	seen := map[string]bool{}
	var urls []string
	add := func(src string) {
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		urls = append(urls, src)
	}

	add(t.Background.Image)
	if t.Soundtrack != nil {
		add(t.Soundtrack.Src)
	}
	for _, track := range t.Tracks {
		if !track.IsEnabled() {
			continue
		}
		for _, clip := range track.Clips {
			switch clip.Type {
			case domain.ClipVideo, domain.ClipImage, domain.ClipAudio:
				add(clip.Src)
			}
			if clip.Font.File != "" {
				add(clip.Font.File)
			}
		}
	}
	return urls
}
