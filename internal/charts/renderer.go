package charts

import (
	"log/slog"
	"time"

	"financeangle/internal/cache"
)

// Renderer memoizes rendered SVGs until the dashboard data changes.
type Renderer struct {
	cache  *cache.LRUCache[[]byte]
	logger *slog.Logger
}

func NewRenderer(ttl time.Duration, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cache: cache.NewLRUCache[[]byte](64, ttl), logger: logger}
}

// Cache exposes the underlying store so a cache.Manager can sweep it.
func (r *Renderer) Cache() *cache.LRUCache[[]byte] {
	return r.cache
}

// Render returns the SVG cached under name and o, calling draw on a miss.
// draw errors are not cached.
func (r *Renderer) Render(name string, o Options, draw func() ([]byte, error)) ([]byte, error) {
	key := name + "|" + o.key()
	if svg, ok := r.cache.Get(key); ok {
		return svg, nil
	}
	svg, err := draw()
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, svg)
	r.logger.Debug("Chart rendered", "chart", name, "bytes", len(svg))
	return svg, nil
}

// Invalidate drops every cached chart.
func (r *Renderer) Invalidate() {
	r.cache.Clear()
}
