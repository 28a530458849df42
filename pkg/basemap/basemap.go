// Package basemap loads country outlines for the static map.
package basemap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

const (
	DefaultURL         = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
	maxBasemapSizeByte = 64 << 20
)

var ErrUnavailable = errors.New("basemap unavailable")

type Config struct {
	URL      string        `split_words:"true" default:"https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"`
	FilePath string        `split_words:"true"`
	Timeout  time.Duration `split_words:"true" default:"30s"`
	CacheTTL time.Duration `split_words:"true" default:"24h"`
}

// Basemap is the set of polygons drawn behind the routes.
type Basemap struct {
	Polygons []orb.Polygon
}

type Source interface {
	Load(ctx context.Context) (*Basemap, error)
}

type Option func(*HTTPSource)

func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSource) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *HTTPSource) {
		if now != nil {
			s.now = now
		}
	}
}

// HTTPSource fetches Natural Earth GeoJSON over HTTP, or reads it from a
// local file when FilePath is set. Parsed results are kept for CacheTTL; a zero
// TTL fetches on every call.
type HTTPSource struct {
	url        string
	path       string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	cached   *Basemap
	cachedAt time.Time
}

var _ Source = (*HTTPSource)(nil)

func NewHTTPSource(cfg Config, opts ...Option) (*HTTPSource, error) {
	url := strings.TrimSpace(cfg.URL)
	path := strings.TrimSpace(cfg.FilePath)
	if url == "" && path == "" {
		return nil, errors.New("basemap url or path is required")
	}
	if cfg.CacheTTL < 0 {
		return nil, errors.New("basemap cache ttl must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &HTTPSource{
		url:        url,
		path:       path,
		ttl:        cfg.CacheTTL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *HTTPSource) Load(ctx context.Context) (*Basemap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.ttl > 0 && s.now().Sub(s.cachedAt) < s.ttl {
		return s.cached, nil
	}

	raw, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	bm, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Ctx(ctx).Debug().
		Int("polygons", len(bm.Polygons)).
		Bool("from_file", s.path != "").
		Msg("basemap loaded")

	if s.ttl > 0 {
		s.cached = bm
		s.cachedAt = s.now()
	}
	return bm, nil
}

func (s *HTTPSource) read(ctx context.Context) ([]byte, error) {
	if s.path != "" {
		return os.ReadFile(s.path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build basemap request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch basemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch basemap: http status=%d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBasemapSizeByte))
	if err != nil {
		return nil, fmt.Errorf("read basemap: %w", err)
	}
	return raw, nil
}

// Parse keeps the polygonal features of a GeoJSON feature collection.
func Parse(raw []byte) (*Basemap, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	bm := &Basemap{Polygons: make([]orb.Polygon, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			bm.Polygons = append(bm.Polygons, g)
		case orb.MultiPolygon:
			bm.Polygons = append(bm.Polygons, g...)
		}
	}
	if len(bm.Polygons) == 0 {
		return nil, errors.New("basemap has no polygons")
	}
	return bm, nil
}

// Static is a fixed in-memory source.
type Static struct {
	Basemap *Basemap
	Err     error
}

func (s Static) Load(context.Context) (*Basemap, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Basemap == nil {
		return nil, ErrUnavailable
	}
	return s.Basemap, nil
}
