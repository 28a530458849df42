// Package airport maps IATA codes to coordinates.
//
// A Table is built once at startup and is read-only afterwards, so it can be
// shared by concurrent requests without locking.
package airport

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

//go:embed data/airports.csv
var embeddedTable []byte

var ErrNotFound = errors.New("airport code not found")

const maxTableSizeByte = 64 << 20

type Config struct {
	// TablePath points at an external CSV merged over the embedded table.
	TablePath string `split_words:"true"`
	// TableURL is fetched at startup and merged over the embedded table. A
	// failed fetch keeps the embedded data.
	TableURL string        `split_words:"true" default:"https://davidmegginson.github.io/ourairports-data/airports.csv"`
	Timeout  time.Duration `split_words:"true" default:"30s"`
}

type Option func(*loader)

func WithHTTPClient(client *http.Client) Option {
	return func(l *loader) {
		if client != nil {
			l.httpClient = client
		}
	}
}

type loader struct {
	httpClient *http.Client
}

type Airport struct {
	Code    string  `json:"code"`
	Name    string  `json:"name,omitempty"`
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Point returns the airport as lon/lat.
func (a Airport) Point() orb.Point {
	return orb.Point{a.Lon, a.Lat}
}

// Resolver is what the route builder needs from a table.
type Resolver interface {
	Resolve(code string) (Airport, error)
}

type Table struct {
	byCode map[string]Airport
}

var _ Resolver = (*Table)(nil)

// Resolve looks code up as-is; there is no case folding or fuzzy matching.
func (t *Table) Resolve(code string) (Airport, error) {
	if t != nil {
		if a, ok := t.byCode[code]; ok {
			return a, nil
		}
	}
	return Airport{}, fmt.Errorf("%w: %q", ErrNotFound, code)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byCode)
}

// Load builds the embedded table and overlays the file at TablePath and the
// table at TableURL on top of it. A local file that cannot be read is an
// error; a remote table that cannot be fetched is logged and skipped.
func Load(ctx context.Context, cfg Config, opts ...Option) (*Table, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := &loader{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	table, err := Parse(bytes.NewReader(embeddedTable))
	if err != nil {
		return nil, fmt.Errorf("parse embedded airport table: %w", err)
	}

	if path := strings.TrimSpace(cfg.TablePath); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open airport table: %w", err)
		}
		defer f.Close()
		overlay, err := Parse(f)
		if err != nil {
			return nil, err
		}
		table.merge(overlay)
	}

	if url := strings.TrimSpace(cfg.TableURL); url != "" {
		overlay, err := l.fetch(ctx, url)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("url", url).Int("airports", table.Len()).
				Msg("remote airport table unavailable, using embedded table")
		} else {
			table.merge(overlay)
		}
	}

	log.Ctx(ctx).Debug().Int("airports", table.Len()).Msg("airport table loaded")
	return table, nil
}

func (l *loader) fetch(ctx context.Context, url string) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build airport table request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch airport table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch airport table: http status=%d", resp.StatusCode)
	}
	return Parse(io.LimitReader(resp.Body, maxTableSizeByte))
}

// merge copies every airport of other into t, replacing existing codes.
func (t *Table) merge(other *Table) {
	for code, a := range other.byCode {
		t.byCode[code] = a
	}
}

// columns lists accepted header names per field. The second name of each
// entry is the OurAirports airports.csv column.
var columns = map[string][]string{
	"type":    {"type"},
	"code":    {"iata", "iata_code"},
	"name":    {"name"},
	"city":    {"city", "municipality"},
	"country": {"country", "iso_country"},
	"lat":     {"lat", "latitude_deg"},
	"lon":     {"lon", "longitude_deg"},
}

// Parse reads a CSV table with a header row. Rows without an IATA code and
// closed airports are skipped; the first row wins for duplicated codes.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read airport table header: %w", err)
	}
	idx, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	t := &Table{byCode: make(map[string]Airport, 1024)}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read airport table line %d: %w", line, err)
		}

		code := strings.TrimSpace(field(rec, idx["code"]))
		if code == "" || strings.TrimSpace(field(rec, idx["type"])) == "closed" {
			continue
		}
		if _, dup := t.byCode[code]; dup {
			continue
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(field(rec, idx["lat"])), 64)
		if err != nil {
			return nil, fmt.Errorf("airport %s line %d: bad latitude: %w", code, line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(field(rec, idx["lon"])), 64)
		if err != nil {
			return nil, fmt.Errorf("airport %s line %d: bad longitude: %w", code, line, err)
		}

		t.byCode[code] = Airport{
			Code:    code,
			Name:    strings.TrimSpace(field(rec, idx["name"])),
			City:    strings.TrimSpace(field(rec, idx["city"])),
			Country: strings.TrimSpace(field(rec, idx["country"])),
			Lat:     lat,
			Lon:     lon,
		}
	}

	if len(t.byCode) == 0 {
		return nil, errors.New("airport table is empty")
	}
	return t, nil
}

func indexColumns(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}

	idx := make(map[string]int, len(columns))
	for name, aliases := range columns {
		idx[name] = -1
		for _, alias := range aliases {
			if i, ok := pos[alias]; ok {
				idx[name] = i
				break
			}
		}
	}
	for _, required := range []string{"code", "lat", "lon"} {
		if idx[required] < 0 {
			return nil, fmt.Errorf("airport table header is missing %q column", required)
		}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
