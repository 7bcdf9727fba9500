package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL            = "https://www.elprisetjustnu.se/api/v1/prices"
	DefaultTomorrowCutoffHour = 13
	DefaultTimeout            = 10 * time.Second
)

var log = logrus.StandardLogger()

type Client struct {
	httpClient         *http.Client
	baseURL            string
	zone               string
	tomorrowCutoffHour int
}

type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTomorrowCutoffHour sets the hour after which tomorrow's prices are requested.
func WithTomorrowCutoffHour(hour int) Option {
	return func(c *Client) {
		c.tomorrowCutoffHour = hour
	}
}

func New(baseURL, zone string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	if zone == "" {
		return nil, fmt.Errorf("price zone cannot be empty")
	}

	c := &Client{
		httpClient:         &http.Client{Timeout: DefaultTimeout},
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		zone:               zone,
		tomorrowCutoffHour: DefaultTomorrowCutoffHour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns the hourly prices from the current hour of today onward and,
// once past the cutoff hour, all of tomorrow's prices.
// A failure for today is returned; a failure for tomorrow is only logged.
func (c *Client) Fetch(ctx context.Context, now time.Time) ([]PricePoint, error) {
	log.Infof("Fetching electricity prices for today (%s)", now.Format(time.DateOnly))
	today, err := c.FetchDay(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("today's prices: %w", err)
	}

	var points []PricePoint
	for _, e := range HourlyAverages(today) {
		if e.Hour >= now.Hour() {
			points = append(points, PricePoint{Day: Today, Hour: e.Hour, Price: e.Price})
		}
	}

	if now.Hour() > c.tomorrowCutoffHour {
		tomorrowDate := now.AddDate(0, 0, 1)
		log.Infof("Fetching electricity prices for tomorrow (%s)", tomorrowDate.Format(time.DateOnly))
		tomorrow, err := c.FetchDay(ctx, tomorrowDate)
		if err != nil {
			log.Warnf("Tomorrow's prices are not available: %v", err)
			return points, nil
		}
		for _, e := range HourlyAverages(tomorrow) {
			points = append(points, PricePoint{Day: Tomorrow, Hour: e.Hour, Price: e.Price})
		}
	}

	return points, nil
}

// FetchDay returns the raw entries the feed publishes for the given date.
func (c *Client) FetchDay(ctx context.Context, date time.Time) ([]Entry, error) {
	endpoint := c.dayURL(date)
	log.Debugf("GET %s", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceDataUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w for %s", ErrNoData, date.Format(time.DateOnly))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrPriceDataUnavailable, res.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceDataUnavailable, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, date.Format(time.DateOnly))
	}
	return entries, nil
}

func (c *Client) dayURL(date time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s.json", c.baseURL, date.Format("2006"), date.Format("01-02"), c.zone)
}
