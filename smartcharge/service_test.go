package smartcharge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/ha-smartcharge/homeassistant"
	"github.com/denysvitali/ha-smartcharge/prices"
)

type mockHub struct {
	mock.Mock
}

func (m *mockHub) ReadSmartChargingEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockHub) ReadChargerState(ctx context.Context) (homeassistant.ChargerState, error) {
	args := m.Called(ctx)
	return args.Get(0).(homeassistant.ChargerState), args.Error(1)
}

func (m *mockHub) ReadBatteryPercent(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockHub) ReadLocation(ctx context.Context) (float64, float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *mockHub) HasLocation() bool {
	return m.Called().Bool(0)
}

func (m *mockHub) SetCharging(ctx context.Context, on bool) error {
	return m.Called(ctx, on).Error(0)
}

type mockPrices struct {
	mock.Mock
}

func (m *mockPrices) Fetch(ctx context.Context, now time.Time) ([]prices.PricePoint, error) {
	args := m.Called(ctx, now)
	points, _ := args.Get(0).([]prices.PricePoint)
	return points, args.Error(1)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DepartureHour = 17
	cfg.Price.Zone = "SE3"
	cfg.Vehicle = VehicleConfig{
		BatteryCapacityKWh: 60,
		ChargerSpeedKW:     11,
		ChargeLimitPercent: 80,
	}
	cfg.HomeAssistant = HomeAssistantConfig{
		BaseURL:             "http://hub.example.com:8123/api",
		Token:               "token",
		BatteryEntity:       "sensor.ev_battery_level",
		ChargerStateEntity:  "sensor.ev_charger_status",
		ChargeSwitchEntity:  "switch.ev_charging",
		SmartChargingEntity: "input_boolean.ev_smart_charging",
	}
	return cfg
}

func at(hour int) time.Time {
	return time.Date(2024, 1, 15, hour, 5, 0, 0, time.UTC)
}

var afternoon = []prices.PricePoint{
	{Day: 0, Hour: 14, Price: 0.5},
	{Day: 0, Hour: 15, Price: 0.1},
	{Day: 0, Hour: 16, Price: 0.3},
}

type fixture struct {
	hub    *mockHub
	prices *mockPrices
	svc    *Service
}

func newFixture(t *testing.T, cfg *Config, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{hub: &mockHub{}, prices: &mockPrices{}}
	svc, err := NewService(f.hub, f.prices, cfg, opts...)
	require.NoError(t, err)
	f.svc = svc
	t.Cleanup(func() {
		f.hub.AssertExpectations(t)
		f.prices.AssertExpectations(t)
	})
	return f
}

func (f *fixture) gates(state homeassistant.ChargerState) {
	f.hub.On("ReadSmartChargingEnabled", mock.Anything).Return(true, nil).Once()
	f.hub.On("ReadChargerState", mock.Anything).Return(state, nil).Once()
}

func TestService_Run_SmartChargingDisabled(t *testing.T) {
	f := newFixture(t, testConfig())
	f.hub.On("ReadSmartChargingEnabled", mock.Anything).Return(false, nil).Once()

	decision, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, decision.Outcome)
	assert.False(t, decision.CommandIssued)
	f.hub.AssertNotCalled(t, "ReadChargerState", mock.Anything)
	f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
}

func TestService_Run_CableDisconnected(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates(homeassistant.ChargerStateConnectCable)

	decision, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, decision.Outcome)
	assert.Equal(t, "Cable not connected", decision.Reason)
	f.hub.AssertNotCalled(t, "ReadBatteryPercent", mock.Anything)
	f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
}

func TestService_Run_ForceCharge(t *testing.T) {
	tests := []struct {
		name         string
		state        homeassistant.ChargerState
		expectToggle bool
	}{
		{name: "not charging yet", state: "awaiting_start", expectToggle: true},
		{name: "already charging", state: homeassistant.ChargerStateCharging, expectToggle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.gates(tt.state)
			// 16:05, departure 17:00: one hour left, two needed
			f.hub.On("ReadBatteryPercent", mock.Anything).Return(50, nil).Once()
			if tt.expectToggle {
				f.hub.On("SetCharging", mock.Anything, true).Return(nil).Once()
			}

			decision, err := f.svc.Run(context.Background(), at(16))
			require.NoError(t, err)
			assert.Equal(t, OutcomeForceCharge, decision.Outcome)
			assert.Equal(t, Window{HoursAvailable: 1, HoursNeeded: 2}, decision.Window)
			assert.Equal(t, tt.expectToggle, decision.CommandIssued)
			f.prices.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
			if !tt.expectToggle {
				f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_Run_ChargeOnCheapHour(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates("ready_to_charge")
	// 70% -> 80% of 60 kWh at 11 kW: one hour
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Once()
	f.prices.On("Fetch", mock.Anything, at(15)).Return(afternoon, nil).Once()
	f.hub.On("SetCharging", mock.Anything, true).Return(nil).Once()

	decision, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	assert.Equal(t, OutcomeChargeOn, decision.Outcome)
	assert.Equal(t, Window{HoursAvailable: 2, HoursNeeded: 1}, decision.Window)
	assert.Equal(t, []prices.PricePoint{{Day: 0, Hour: 15, Price: 0.1}}, decision.Schedule)
	assert.True(t, decision.CommandIssued)
}

func TestService_Run_ChargeOff(t *testing.T) {
	tests := []struct {
		name         string
		state        homeassistant.ChargerState
		expectToggle bool
	}{
		{name: "stops a running charge", state: homeassistant.ChargerStateCharging, expectToggle: true},
		{name: "leaves an idle charger alone", state: "ready_to_charge", expectToggle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.gates(tt.state)
			f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Once()
			f.prices.On("Fetch", mock.Anything, at(14)).Return(afternoon, nil).Once()
			if tt.expectToggle {
				f.hub.On("SetCharging", mock.Anything, false).Return(nil).Once()
			}

			decision, err := f.svc.Run(context.Background(), at(14))
			require.NoError(t, err)
			assert.Equal(t, OutcomeChargeOff, decision.Outcome)
			assert.Equal(t, tt.expectToggle, decision.CommandIssued)
			if !tt.expectToggle {
				f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_Run_BatteryFull(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates(homeassistant.ChargerStateCharging)
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(80, nil).Once()
	f.hub.On("SetCharging", mock.Anything, false).Return(nil).Once()

	decision, err := f.svc.Run(context.Background(), at(10))
	require.NoError(t, err)
	assert.Equal(t, OutcomeChargeOff, decision.Outcome)
	assert.Equal(t, 0, decision.Window.HoursNeeded)
	f.prices.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestService_Run_PricesUnavailable(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates(homeassistant.ChargerStateCharging)
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Once()
	f.prices.On("Fetch", mock.Anything, at(14)).
		Return(nil, fmt.Errorf("today's prices: %w", prices.ErrNoData)).Once()

	decision, err := f.svc.Run(context.Background(), at(14))
	assert.Nil(t, decision)
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)
	f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
}

func TestService_Run_EmptyPriceList(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates(homeassistant.ChargerStateCharging)
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Once()
	f.prices.On("Fetch", mock.Anything, at(14)).Return([]prices.PricePoint{}, nil).Once()

	_, err := f.svc.Run(context.Background(), at(14))
	assert.ErrorIs(t, err, ErrPriceDataUnavailable)
	f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
}

func TestService_Run_BatteryUnknown(t *testing.T) {
	hubErr := fmt.Errorf("%w: unexpected status 502 Bad Gateway", homeassistant.ErrUpstreamUnavailable)

	t.Run("aborts by default", func(t *testing.T) {
		f := newFixture(t, testConfig())
		f.gates("ready_to_charge")
		f.hub.On("ReadBatteryPercent", mock.Anything).Return(0, hubErr).Once()

		decision, err := f.svc.Run(context.Background(), at(3))
		assert.Nil(t, decision)
		assert.ErrorIs(t, err, homeassistant.ErrUpstreamUnavailable)
		f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
		f.prices.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("fail safe charges", func(t *testing.T) {
		cfg := testConfig()
		cfg.FailSafeCharge = true
		f := newFixture(t, cfg)
		f.gates("ready_to_charge")
		f.hub.On("ReadBatteryPercent", mock.Anything).Return(0, hubErr).Once()
		f.hub.On("SetCharging", mock.Anything, true).Return(nil).Once()

		decision, err := f.svc.Run(context.Background(), at(3))
		require.NoError(t, err)
		assert.Equal(t, OutcomeForceCharge, decision.Outcome)
		assert.True(t, decision.CommandIssued)
		f.prices.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})
}

func TestService_Run_CommandFails(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gates("ready_to_charge")
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(10, nil).Once()
	f.hub.On("SetCharging", mock.Anything, true).
		Return(fmt.Errorf("%w: unexpected status 500", homeassistant.ErrUpstreamUnavailable)).Once()

	_, err := f.svc.Run(context.Background(), at(16))
	assert.ErrorIs(t, err, homeassistant.ErrUpstreamUnavailable)
}

func TestService_Run_Location(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		aborted  bool
	}{
		{name: "parked at home", lat: 59.3294, lng: 18.0687, aborted: false},
		{name: "away from home", lat: 59.3793, lng: 18.0686, aborted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Home = HomeConfig{Latitude: 59.3293, Longitude: 18.0686, RadiusMeters: 100}
			f := newFixture(t, cfg)
			f.gates("ready_to_charge")
			f.hub.On("HasLocation").Return(true).Once()
			f.hub.On("ReadLocation", mock.Anything).Return(tt.lat, tt.lng, nil).Once()
			if !tt.aborted {
				f.hub.On("ReadBatteryPercent", mock.Anything).Return(10, nil).Once()
				f.hub.On("SetCharging", mock.Anything, true).Return(nil).Once()
			}

			decision, err := f.svc.Run(context.Background(), at(16))
			require.NoError(t, err)
			if tt.aborted {
				assert.Equal(t, OutcomeAborted, decision.Outcome)
				f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
			} else {
				assert.Equal(t, OutcomeForceCharge, decision.Outcome)
			}
		})
	}
}

func TestService_Run_DryRun(t *testing.T) {
	f := newFixture(t, testConfig(), WithDryRun(true))
	f.gates("ready_to_charge")
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Once()
	f.prices.On("Fetch", mock.Anything, at(15)).Return(afternoon, nil).Once()

	decision, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	assert.Equal(t, OutcomeChargeOn, decision.Outcome)
	assert.False(t, decision.CommandIssued)
	f.hub.AssertNotCalled(t, "SetCharging", mock.Anything, mock.Anything)
}

func TestService_Run_SameInputsSameDecision(t *testing.T) {
	f := newFixture(t, testConfig(), WithDryRun(true))
	f.hub.On("ReadSmartChargingEnabled", mock.Anything).Return(true, nil).Twice()
	f.hub.On("ReadChargerState", mock.Anything).Return(homeassistant.ChargerState("ready_to_charge"), nil).Twice()
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(70, nil).Twice()
	f.prices.On("Fetch", mock.Anything, at(15)).Return(afternoon, nil).Twice()

	first, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), at(15))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DepartureHour = 25
	_, err := NewService(&mockHub{}, &mockPrices{}, cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestService_Plan(t *testing.T) {
	f := newFixture(t, testConfig())
	f.prices.On("Fetch", mock.Anything, at(14)).Return(afternoon, nil).Once()

	battery := 50
	plan, err := f.svc.Plan(context.Background(), at(14), &battery)
	require.NoError(t, err)
	assert.Equal(t, Window{HoursAvailable: 3, HoursNeeded: 2}, plan.Window)
	assert.Len(t, plan.Reachable, 3)
	assert.True(t, plan.Selected(afternoon[1]))
	assert.True(t, plan.Selected(afternoon[2]))
	assert.False(t, plan.Selected(afternoon[0]))
	f.hub.AssertNotCalled(t, "ReadBatteryPercent", mock.Anything)
}

func TestService_Plan_ReadsBattery(t *testing.T) {
	f := newFixture(t, testConfig())
	f.hub.On("ReadBatteryPercent", mock.Anything).Return(79, nil).Once()
	f.prices.On("Fetch", mock.Anything, at(14)).Return(afternoon, nil).Once()

	plan, err := f.svc.Plan(context.Background(), at(14), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Window.HoursNeeded)
	assert.Equal(t, []prices.PricePoint{afternoon[1]}, plan.Schedule)
}
