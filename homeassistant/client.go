package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 10 * time.Second

type ChargerState string

const (
	ChargerStateConnectCable ChargerState = "connect_cable"
	ChargerStateCharging     ChargerState = "charging"
)

// Entities names the hub entities the client reads and commands.
type Entities struct {
	Battery       string
	ChargerState  string
	ChargeSwitch  string
	SmartCharging string
	// Location is an optional device tracker reporting latitude/longitude.
	Location string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	entities   Entities
}

// State is the payload of GET /api/states/<entity_id>.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

type serviceRequest struct {
	EntityID string `json:"entity_id"`
}

var log = logrus.StandardLogger()

func New(baseURL, token string, entities Entities, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Home Assistant URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log.Debugf("homeassistant New: %s", u.Host)
	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: bearerRoundTripper{token: token},
		},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		entities: entities,
	}
	return c, nil
}

func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id cannot be empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/states/"+entityID, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, getError(res)
	}

	var state State
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %s", ErrUpstreamUnavailable, entityID, err)
	}
	log.Debugf("state %s=%q", entityID, state.State)
	return &state, nil
}

// ReadBatteryPercent returns the vehicle's state of charge. Sensors report it
// either as an integer or a float string.
func (c *Client) ReadBatteryPercent(ctx context.Context) (int, error) {
	state, err := c.GetState(ctx, c.entities.Battery)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(state.State, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: battery level %q is not a number", ErrUpstreamUnavailable, state.State)
	}
	if math.IsNaN(value) || value < 0 || value > 100 {
		return 0, fmt.Errorf("%w: battery level %v out of range", ErrUpstreamUnavailable, value)
	}
	return int(value), nil
}

func (c *Client) ReadChargerState(ctx context.Context) (ChargerState, error) {
	state, err := c.GetState(ctx, c.entities.ChargerState)
	if err != nil {
		return "", err
	}
	return ChargerState(state.State), nil
}

func (c *Client) ReadSmartChargingEnabled(ctx context.Context) (bool, error) {
	state, err := c.GetState(ctx, c.entities.SmartCharging)
	if err != nil {
		return false, err
	}
	return state.State == "on", nil
}

// ReadLocation returns the coordinates reported by the location entity.
func (c *Client) ReadLocation(ctx context.Context) (float64, float64, error) {
	state, err := c.GetState(ctx, c.entities.Location)
	if err != nil {
		return 0, 0, err
	}

	lat, okLat := state.Attributes["latitude"].(float64)
	lng, okLng := state.Attributes["longitude"].(float64)
	if !okLat || !okLng {
		return 0, 0, fmt.Errorf("%w: %s has no coordinates", ErrUpstreamUnavailable, c.entities.Location)
	}
	return lat, lng, nil
}

func (c *Client) HasLocation() bool {
	return c.entities.Location != ""
}

func (c *Client) SetCharging(ctx context.Context, on bool) error {
	service := "turn_off"
	if on {
		service = "turn_on"
	}
	return c.callSwitchService(ctx, service)
}

func (c *Client) callSwitchService(ctx context.Context, service string) error {
	log.Debugf("switch.%s on %s", service, c.entities.ChargeSwitch)
	body, err := json.Marshal(serviceRequest{EntityID: c.entities.ChargeSwitch})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/services/switch/"+service, bytes.NewReader(body))
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: switch.%s failed: %s", ErrUpstreamUnavailable, service, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return getError(res)
	}
	return nil
}
