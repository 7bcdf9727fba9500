package smartcharge

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/denysvitali/ha-smartcharge/prices"
)

const unset = -1

type PriceConfig struct {
	BaseURL            string `yaml:"base_url"`
	Zone               string `yaml:"zone"`
	TomorrowCutoffHour int    `yaml:"tomorrow_cutoff_hour"`
}

type VehicleConfig struct {
	BatteryCapacityKWh float64 `yaml:"battery_capacity_kwh"`
	ChargerSpeedKW     float64 `yaml:"charger_speed_kw"`
	ChargeLimitPercent int     `yaml:"charge_limit_percent"`
}

type HomeAssistantConfig struct {
	BaseURL             string `yaml:"base_url"`
	Token               string `yaml:"token"`
	BatteryEntity       string `yaml:"battery_entity"`
	ChargerStateEntity  string `yaml:"charger_state_entity"`
	ChargeSwitchEntity  string `yaml:"charge_switch_entity"`
	SmartChargingEntity string `yaml:"smart_charging_entity"`
	LocationEntity      string `yaml:"location_entity,omitempty"`
}

// HomeConfig is the charger's position. When set together with a location
// entity, passes are skipped while the vehicle is further away than RadiusMeters.
type HomeConfig struct {
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	RadiusMeters float64 `yaml:"radius_meters"`
}

func (h HomeConfig) IsSet() bool {
	return h.Latitude != 0 || h.Longitude != 0
}

type Config struct {
	DepartureHour  int           `yaml:"departure_hour"`
	FailSafeCharge bool          `yaml:"fail_safe_charge"`
	Timeout        time.Duration `yaml:"timeout"`

	Price         PriceConfig         `yaml:"price"`
	Vehicle       VehicleConfig       `yaml:"vehicle"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Home          HomeConfig          `yaml:"home,omitempty"`
}

var DefaultConfigFilePath = filepath.Join(xdg.ConfigHome, "ha-smartcharge", "config.yaml")

// DefaultConfig returns a Config with optional settings filled in and the
// required integer settings marked as unset.
func DefaultConfig() *Config {
	return &Config{
		DepartureHour: unset,
		Timeout:       10 * time.Second,
		Price: PriceConfig{
			BaseURL:            prices.DefaultBaseURL,
			TomorrowCutoffHour: prices.DefaultTomorrowCutoffHour,
		},
		Vehicle: VehicleConfig{
			ChargeLimitPercent: unset,
		},
		Home: HomeConfig{
			RadiusMeters: 200,
		},
	}
}

func GetConfigFromFile(inputConfigFile string) (*Config, error) {
	if inputConfigFile == "" {
		inputConfigFile = DefaultConfigFilePath
	}
	f, err := os.Open(inputConfigFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := DefaultConfig()
	err = yaml.NewDecoder(f).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrConfiguration, inputConfigFile, err)
	}
	return cfg, nil
}

// Validate checks that every required setting is present and in range.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrConfiguration)
	}

	required := []struct {
		key   string
		value string
	}{
		{"price.zone", c.Price.Zone},
		{"price.base_url", c.Price.BaseURL},
		{"home_assistant.base_url", c.HomeAssistant.BaseURL},
		{"home_assistant.token", c.HomeAssistant.Token},
		{"home_assistant.battery_entity", c.HomeAssistant.BatteryEntity},
		{"home_assistant.charger_state_entity", c.HomeAssistant.ChargerStateEntity},
		{"home_assistant.charge_switch_entity", c.HomeAssistant.ChargeSwitchEntity},
		{"home_assistant.smart_charging_entity", c.HomeAssistant.SmartChargingEntity},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is not set", ErrConfiguration, r.key)
		}
	}

	urls := required[1:3]
	for _, r := range urls {
		u, err := url.Parse(r.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrConfiguration, r.key, r.value)
		}
	}

	if c.DepartureHour == unset {
		return fmt.Errorf("%w: departure_hour is not set", ErrConfiguration)
	}
	if c.DepartureHour < 0 || c.DepartureHour > 23 {
		return fmt.Errorf("%w: departure_hour %d must be between 0 and 23", ErrConfiguration, c.DepartureHour)
	}
	if c.Price.TomorrowCutoffHour < 0 || c.Price.TomorrowCutoffHour > 23 {
		return fmt.Errorf("%w: price.tomorrow_cutoff_hour %d must be between 0 and 23", ErrConfiguration, c.Price.TomorrowCutoffHour)
	}
	if c.Vehicle.ChargeLimitPercent == unset {
		return fmt.Errorf("%w: vehicle.charge_limit_percent is not set", ErrConfiguration)
	}
	if c.Vehicle.ChargeLimitPercent < 0 || c.Vehicle.ChargeLimitPercent > 100 {
		return fmt.Errorf("%w: vehicle.charge_limit_percent %d must be between 0 and 100", ErrConfiguration, c.Vehicle.ChargeLimitPercent)
	}
	if c.Vehicle.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("%w: vehicle.battery_capacity_kwh must be positive", ErrConfiguration)
	}
	if c.Vehicle.ChargerSpeedKW <= 0 {
		return fmt.Errorf("%w: vehicle.charger_speed_kw must be positive", ErrConfiguration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrConfiguration)
	}
	if c.Home.IsSet() && c.Home.RadiusMeters <= 0 {
		return fmt.Errorf("%w: home.radius_meters must be positive", ErrConfiguration)
	}

	return nil
}
