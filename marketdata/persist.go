package marketdata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// The file store keeps one JSONL file per year, one observation per line,
// in a stable order. Human readable, and git friendly: a daily refresh
// touches the current year's file only, and re-storing known points leaves
// every file byte-identical.
const marketFilesGlob = "[0-9][0-9][0-9][0-9].jsonl"

// File is a Store persisted in a folder of yearly JSONL files. All points
// are kept in memory; writes rewrite the affected year files.
type File struct {
	folder string
	mem    *Memory
}

var _ Store = (*File)(nil)

// NewFile opens (or initializes) a market data folder.
func NewFile(folder string) (*File, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create market folder %q: %w", folder, err)
	}
	f := &File{folder: folder, mem: NewMemory()}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	filenames, err := filepath.Glob(filepath.Join(f.folder, marketFilesGlob))
	if err != nil {
		return fmt.Errorf("cannot scan market folder %q: %w", f.folder, err)
	}
	for _, filename := range filenames {
		r, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("cannot open %q for reading: %w", filename, err)
		}
		scanner := bufio.NewScanner(r)
		i := 0
		for scanner.Scan() {
			i++
			if err := f.loadLine(filename, i, scanner.Text()); err != nil {
				r.Close()
				return err
			}
		}
		err = scanner.Err()
		r.Close()
		if err != nil {
			return fmt.Errorf("cannot read %q: %w", filename, err)
		}
	}
	return nil
}

func (f *File) loadLine(filename string, i int, txt string) error {
	if strings.TrimSpace(txt) == "" {
		return nil
	}
	// A line is a price point or a rate point; probe the discriminating
	// attribute first.
	var probe struct {
		Asset string `json:"asset"`
		From  string `json:"from"`
	}
	if err := json.Unmarshal([]byte(txt), &probe); err != nil {
		return fmt.Errorf("parse error %s:%d: not a correct json: %w", filename, i, err)
	}
	switch {
	case probe.Asset != "":
		var p ledgersync.PricePoint
		if err := json.Unmarshal([]byte(txt), &p); err != nil {
			return fmt.Errorf("parse error %s:%d: invalid price point: %w", filename, i, err)
		}
		return f.mem.PutPrices(p)
	case probe.From != "":
		var p ledgersync.FxRatePoint
		if err := json.Unmarshal([]byte(txt), &p); err != nil {
			return fmt.Errorf("parse error %s:%d: invalid rate point: %w", filename, i, err)
		}
		return f.mem.PutFxRates(p)
	default:
		return fmt.Errorf("parse error %s:%d: neither an %q nor a %q attribute", filename, i, "asset", "from")
	}
}

func (f *File) Price(asset string, kind ledgersync.PriceKind, day date.Date) (ledgersync.PricePoint, bool) {
	return f.mem.Price(asset, kind, day)
}

func (f *File) PriceLookback(asset string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.PricePoint, bool) {
	return f.mem.PriceLookback(asset, kind, day, maxDays)
}

func (f *File) LatestPrice(asset string, kind ledgersync.PriceKind) (ledgersync.PricePoint, bool) {
	return f.mem.LatestPrice(asset, kind)
}

func (f *File) Prices(asset string) []ledgersync.PricePoint { return f.mem.Prices(asset) }

func (f *File) Assets() []string { return f.mem.Assets() }

func (f *File) PutPrices(points ...ledgersync.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := f.mem.PutPrices(points...); err != nil {
		return err
	}
	years := make(map[int]bool)
	for _, p := range points {
		years[p.Day.Year()] = true
	}
	return f.persistYears(years)
}

func (f *File) FxRate(from, to string, kind ledgersync.PriceKind, day date.Date) (ledgersync.FxRatePoint, bool) {
	return f.mem.FxRate(from, to, kind, day)
}

func (f *File) FxLookback(from, to string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.FxRatePoint, bool) {
	return f.mem.FxLookback(from, to, kind, day, maxDays)
}

func (f *File) PutFxRates(points ...ledgersync.FxRatePoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := f.mem.PutFxRates(points...); err != nil {
		return err
	}
	years := make(map[int]bool)
	for _, p := range points {
		years[p.Day.Year()] = true
	}
	return f.persistYears(years)
}

// persistYears rewrites the year files touched by a put.
func (f *File) persistYears(years map[int]bool) error {
	prices, rates := f.mem.snapshot()
	for year := range years {
		var lines []string
		for _, p := range prices {
			if p.Day.Year() != year {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("persist error: cannot marshal price point for %q: %w", p.Asset, err)
			}
			lines = append(lines, string(data))
		}
		for _, p := range rates {
			if p.Day.Year() != year {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("persist error: cannot marshal rate point %s/%s: %w", p.From, p.To, err)
			}
			lines = append(lines, string(data))
		}
		filename := filepath.Join(f.folder, fmt.Sprintf("%04d.jsonl", year))
		if err := writeLines(filename, lines); err != nil {
			return fmt.Errorf("persist error: %w", err)
		}
	}
	return nil
}

// writeLines writes a whole file atomically, via a temp file and a rename.
func writeLines(filename string, lines []string) error {
	tmp := filename + ".tmp"
	w, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cannot create %q: %w", tmp, err)
	}
	b := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := fmt.Fprintln(b, l); err != nil {
			w.Close()
			return fmt.Errorf("cannot write to %q: %w", tmp, err)
		}
	}
	if err := b.Flush(); err != nil {
		w.Close()
		return fmt.Errorf("cannot write to %q: %w", tmp, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cannot close %q: %w", tmp, err)
	}
	return os.Rename(tmp, filename)
}
