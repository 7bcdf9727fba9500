package root

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/ha-smartcharge/homeassistant"
	"github.com/denysvitali/ha-smartcharge/prices"
	"github.com/denysvitali/ha-smartcharge/smartcharge"
)

var (
	cfgFile  string
	logLevel string
	cfg      *smartcharge.Config
	log      = logrus.StandardLogger()
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"departure_hour":                       "DEPARTURE_HOUR",
	"fail_safe_charge":                     "FAIL_SAFE_CHARGE",
	"timeout":                              "HTTP_TIMEOUT",
	"price.zone":                           "PRICE_ZONE",
	"price.base_url":                       "PRICE_BASE_URL",
	"price.tomorrow_cutoff_hour":           "PRICE_TOMORROW_CUTOFF_HOUR",
	"vehicle.charger_speed_kw":             "EV_CHARGER_SPEED_KW",
	"vehicle.battery_capacity_kwh":         "EV_BATTERY_CAPACITY_KWH",
	"vehicle.charge_limit_percent":         "EV_CHARGE_LIMIT_PERCENT",
	"home_assistant.base_url":              "HA_BASE_URL",
	"home_assistant.token":                 "HA_TOKEN",
	"home_assistant.battery_entity":        "HA_EV_BATTERY_ENTITY",
	"home_assistant.charge_switch_entity":  "HA_EV_CHARGE_SWITCH",
	"home_assistant.charger_state_entity":  "HA_EV_CHARGER_STATE",
	"home_assistant.smart_charging_entity": "HA_EV_SMART_CHARGING_BOOLEAN",
	"home_assistant.location_entity":       "HA_EV_LOCATION_ENTITY",
	"home.latitude":                        "HOME_LATITUDE",
	"home.longitude":                       "HOME_LONGITUDE",
	"home.radius_meters":                   "HOME_RADIUS_METERS",
}

var RootCmd = &cobra.Command{
	Use:   "ha-smartcharge",
	Short: "Charge your EV during the cheapest hours before departure",
	Long: `ha-smartcharge reads your EV's state from Home Assistant, looks up the
day-ahead electricity prices and switches the charger on or off so the car is
charged in the cheapest hours before the next departure.

Run it once per hour from cron (ha-smartcharge run) or let it schedule itself
(ha-smartcharge scheduled).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setLogLevel(); err != nil {
			return err
		}

		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/ha-smartcharge/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", RootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", RootCmd.PersistentFlags().Lookup("log-level"))

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
}

func initConfig() error {
	configPath := cfgFile
	if configPath == "" {
		configPath = filepath.Join(xdg.ConfigHome, "ha-smartcharge", "config.yaml")
	}

	var err error
	cfg, err = smartcharge.GetConfigFromFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfgFile != "" {
			return fmt.Errorf("%w: config file %s not found", smartcharge.ErrConfiguration, cfgFile)
		}
		log.Debug("No config file found, using defaults and environment variables")
		cfg = smartcharge.DefaultConfig()
	} else {
		log.Debugf("Using config file: %s", configPath)
	}

	if err := applyOverrides(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// applyOverrides copies every key set through the environment onto c.
// Unparsable values are configuration errors rather than zero values.
func applyOverrides(c *smartcharge.Config) error {
	overrides := []struct {
		key string
		set func(v string) error
	}{
		{"departure_hour", intSetter(&c.DepartureHour)},
		{"fail_safe_charge", boolSetter(&c.FailSafeCharge)},
		{"timeout", durationSetter(&c.Timeout)},
		{"price.zone", func(v string) error { c.Price.Zone = strings.ToUpper(v); return nil }},
		{"price.base_url", stringSetter(&c.Price.BaseURL)},
		{"price.tomorrow_cutoff_hour", intSetter(&c.Price.TomorrowCutoffHour)},
		{"vehicle.charger_speed_kw", floatSetter(&c.Vehicle.ChargerSpeedKW)},
		{"vehicle.battery_capacity_kwh", floatSetter(&c.Vehicle.BatteryCapacityKWh)},
		{"vehicle.charge_limit_percent", intSetter(&c.Vehicle.ChargeLimitPercent)},
		{"home_assistant.base_url", stringSetter(&c.HomeAssistant.BaseURL)},
		{"home_assistant.token", stringSetter(&c.HomeAssistant.Token)},
		{"home_assistant.battery_entity", stringSetter(&c.HomeAssistant.BatteryEntity)},
		{"home_assistant.charge_switch_entity", stringSetter(&c.HomeAssistant.ChargeSwitchEntity)},
		{"home_assistant.charger_state_entity", stringSetter(&c.HomeAssistant.ChargerStateEntity)},
		{"home_assistant.smart_charging_entity", stringSetter(&c.HomeAssistant.SmartChargingEntity)},
		{"home_assistant.location_entity", stringSetter(&c.HomeAssistant.LocationEntity)},
		{"home.latitude", floatSetter(&c.Home.Latitude)},
		{"home.longitude", floatSetter(&c.Home.Longitude)},
		{"home.radius_meters", floatSetter(&c.Home.RadiusMeters)},
	}

	for _, o := range overrides {
		if !viper.IsSet(o.key) {
			continue
		}
		if err := o.set(strings.TrimSpace(viper.GetString(o.key))); err != nil {
			return fmt.Errorf("%w: %s (%s): %s", smartcharge.ErrConfiguration, o.key, envBindings[o.key], err)
		}
	}
	return nil
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func setLogLevel() error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", logLevel)
	}
	log.SetLevel(lvl)
	return nil
}

func Execute() error {
	return RootCmd.Execute()
}

func GetConfig() *smartcharge.Config {
	return cfg
}

func GetLogger() *logrus.Logger {
	return log
}

// NewHub builds the Home Assistant client from the loaded configuration.
func NewHub() (*homeassistant.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	ha := cfg.HomeAssistant
	return homeassistant.New(ha.BaseURL, ha.Token, homeassistant.Entities{
		Battery:       ha.BatteryEntity,
		ChargerState:  ha.ChargerStateEntity,
		ChargeSwitch:  ha.ChargeSwitchEntity,
		SmartCharging: ha.SmartChargingEntity,
		Location:      ha.LocationEntity,
	}, cfg.Timeout)
}

// NewService wires the hub and price feed clients into a smartcharge.Service.
func NewService(opts ...smartcharge.ServiceOption) (*smartcharge.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	hub, err := NewHub()
	if err != nil {
		return nil, fmt.Errorf("failed to create Home Assistant client: %w", err)
	}

	priceClient, err := prices.New(cfg.Price.BaseURL, cfg.Price.Zone,
		prices.WithTimeout(cfg.Timeout),
		prices.WithTomorrowCutoffHour(cfg.Price.TomorrowCutoffHour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create price client: %w", err)
	}

	return smartcharge.NewService(hub, priceClient, cfg, opts...)
}
