package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/njoerd114/clinicsync/internal/model"
)

// HolidayClient reads public holidays from a Nager.Date compatible API. The
// API answers plain JSON arrays without an envelope.
type HolidayClient struct {
	base *url.URL
	hc   *http.Client
}

// NewHolidayClient returns a client rooted at baseURL (for example
// "https://date.nager.at/").
func NewHolidayClient(baseURL string, t *Transport) (*HolidayClient, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("holiday API: %w", err)
	}
	return &HolidayClient{base: u, hc: t.HTTPClient()}, nil
}

// PublicHolidays returns every public holiday of year in the given country.
func (c *HolidayClient) PublicHolidays(ctx context.Context, year int, countryCode string) ([]model.Holiday, error) {
	u := c.base.JoinPath("api", "v3", "PublicHolidays", strconv.Itoa(year), strings.ToUpper(countryCode))
	hs, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching %d holidays for %s: %w", year, countryCode, err)
	}
	return hs, nil
}

// NextPublicHolidays returns the upcoming public holidays of the given
// country, as chosen by the API (typically the next 365 days).
func (c *HolidayClient) NextPublicHolidays(ctx context.Context, countryCode string) ([]model.Holiday, error) {
	u := c.base.JoinPath("api", "v3", "NextPublicHolidays", strings.ToUpper(countryCode))
	hs, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching next holidays for %s: %w", countryCode, err)
	}
	return hs, nil
}

func (c *HolidayClient) get(ctx context.Context, u *url.URL) ([]model.Holiday, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(req, resp)
	}

	var wire []wireHoliday
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding holidays: %w", err)
	}
	out := make([]model.Holiday, 0, len(wire))
	for _, w := range wire {
		out = append(out, holidayFromWire(w))
	}
	return out, nil
}
