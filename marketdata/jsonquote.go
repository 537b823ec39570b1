package marketdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// JSONQuoteSource fetches live quotes from a JSON HTTP endpoint, one URL
// per asset, and extracts the value with a JSONPath expression. Many retail
// quote feeds fit this shape.
//
// It only serves quotes; asking for the close of a past day fails. The
// close of the current day resolves to the latest trade, which is what a
// daily refresh run records as that day's value.
type JSONQuoteSource struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// URL returns the endpoint to query for an asset.
	URL func(asset string) string
	// Path is the JSONPath to the price in the response.
	Path string
	// Currency is the currency the feed quotes in.
	Currency string
	// Clock defaults to the system clock.
	Clock ledgersync.Clock

	name string
}

var _ Source = (*JSONQuoteSource)(nil)

// NewJSONQuoteSource creates a quote source named name.
func NewJSONQuoteSource(name, currency string, url func(asset string) string, path string) *JSONQuoteSource {
	return &JSONQuoteSource{name: name, Currency: currency, URL: url, Path: path}
}

func (s *JSONQuoteSource) Name() string { return s.name }

func (s *JSONQuoteSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *JSONQuoteSource) clock() ledgersync.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return ledgersync.SystemClock()
}

func (s *JSONQuoteSource) PriceLatest(asset string) (ledgersync.PricePoint, error) {
	addr := s.URL(asset)
	var jobj any
	if err := jwget(s.client(), addr, &jobj); err != nil {
		return ledgersync.PricePoint{}, &ledgersync.NetworkError{Op: "quote " + asset, Err: err}
	}
	val, err := jsonFloat(jobj, s.Path)
	if err != nil {
		return ledgersync.PricePoint{}, &ledgersync.ParseError{Source: s.name, Detail: "quote for " + asset, Err: err}
	}
	now := s.clock().Now()
	return ledgersync.PricePoint{
		Asset:    asset,
		Day:      date.Of(now),
		Time:     now,
		Price:    decimal.NewFromFloat(val),
		Currency: s.Currency,
		Kind:     ledgersync.Quote,
		Source:   s.name,
	}, nil
}

func (s *JSONQuoteSource) PriceClose(asset string, day date.Date) (ledgersync.PricePoint, error) {
	today := date.Of(s.clock().Now())
	if day != today {
		return ledgersync.PricePoint{}, fmt.Errorf("%s serves quotes only, no close for %s on %s: %w",
			s.name, asset, day, ledgersync.ErrPriceMissing)
	}
	p, err := s.PriceLatest(asset)
	if err != nil {
		return ledgersync.PricePoint{}, err
	}
	p.Kind = ledgersync.Close
	p.Day = day
	return p, nil
}

// JSONFxSource fetches exchange rates against a single pivot currency from
// a JSON HTTP endpoint, one URL per counter currency.
type JSONFxSource struct {
	Client *http.Client
	// URL returns the endpoint to query for a counter currency.
	URL func(cur string) string
	// Path is the JSONPath to the rate in the response.
	Path  string
	Clock ledgersync.Clock

	name string
	base string
}

var _ FxSource = (*JSONFxSource)(nil)

// NewJSONFxSource creates an FX source quoting against base.
func NewJSONFxSource(name, base string, url func(cur string) string, path string) *JSONFxSource {
	return &JSONFxSource{name: name, base: base, URL: url, Path: path}
}

func (s *JSONFxSource) Name() string { return s.name }
func (s *JSONFxSource) Base() string { return s.base }

func (s *JSONFxSource) clock() ledgersync.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return ledgersync.SystemClock()
}

func (s *JSONFxSource) Rate(cur string, day date.Date) (ledgersync.FxRatePoint, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	addr := s.URL(cur)
	var jobj any
	if err := jwget(client, addr, &jobj); err != nil {
		return ledgersync.FxRatePoint{}, &ledgersync.NetworkError{Op: "rate " + s.base + "/" + cur, Err: err}
	}
	val, err := jsonFloat(jobj, s.Path)
	if err != nil {
		return ledgersync.FxRatePoint{}, &ledgersync.ParseError{Source: s.name, Detail: "rate for " + cur, Err: err}
	}
	return ledgersync.FxRatePoint{
		From:   s.base,
		To:     cur,
		Day:    day,
		Time:   s.clock().Now(),
		Rate:   decimal.NewFromFloat(val),
		Kind:   ledgersync.Close,
		Source: s.name,
	}, nil
}

// jwget performs an HTTP GET and unmarshals the JSON response into data.
func jwget(client *http.Client, addr string, data any) error {
	resp, err := client.Get(addr)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return fmt.Errorf("cannot http GET %v/%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	_, err = io.Copy(&buf, resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}

// jsonFloat extracts a number at path. Feeds are sloppy about it: the value
// may come back as a one-element list, or as a localized string.
func jsonFloat(jobj any, path string) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("jsonpath %q: %w", path, err)
	}
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	if val, ok := jval.(float64); ok {
		return val, nil
	}
	sval, ok := jval.(string)
	if !ok {
		return 0, fmt.Errorf("jsonpath %q: %v is neither a float nor a string", path, jval)
	}
	sval = strings.ReplaceAll(sval, ",", ".")
	sval = strings.ReplaceAll(sval, " ", "")
	val, err := strconv.ParseFloat(sval, 64)
	if err != nil {
		return 0, fmt.Errorf("jsonpath %q: invalid number %q: %w", path, sval, err)
	}
	return val, nil
}
