package smartcharge

import (
	"context"
	"fmt"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/ha-smartcharge/homeassistant"
	"github.com/denysvitali/ha-smartcharge/prices"
)

var log = logrus.StandardLogger()

// Hub is the part of the home-automation hub a pass talks to.
type Hub interface {
	ReadSmartChargingEnabled(ctx context.Context) (bool, error)
	ReadChargerState(ctx context.Context) (homeassistant.ChargerState, error)
	ReadBatteryPercent(ctx context.Context) (int, error)
	ReadLocation(ctx context.Context) (float64, float64, error)
	HasLocation() bool
	SetCharging(ctx context.Context, on bool) error
}

type PriceSource interface {
	Fetch(ctx context.Context, now time.Time) ([]prices.PricePoint, error)
}

type Outcome string

const (
	OutcomeAborted     Outcome = "aborted"
	OutcomeForceCharge Outcome = "forceCharge"
	OutcomeChargeOn    Outcome = "chargeOn"
	OutcomeChargeOff   Outcome = "chargeOff"
)

// Charging reports whether the outcome asks for the charger to be on.
func (o Outcome) Charging() bool {
	return o == OutcomeForceCharge || o == OutcomeChargeOn
}

// Decision is the result of one pass.
type Decision struct {
	Outcome       Outcome             `json:"outcome"`
	Reason        string              `json:"reason"`
	Window        Window              `json:"window"`
	ChargerState  string              `json:"charger_state,omitempty"`
	Schedule      []prices.PricePoint `json:"schedule,omitempty"`
	CommandIssued bool                `json:"command_issued"`
}

// Service runs decision passes against a hub and a price source.
type Service struct {
	hub    Hub
	prices PriceSource
	cfg    *Config
	dryRun bool
}

type ServiceOption func(*Service)

// WithDryRun makes passes log the command they would issue instead of
// sending it to the hub.
func WithDryRun(dryRun bool) ServiceOption {
	return func(s *Service) {
		s.dryRun = dryRun
	}
}

func NewService(hub Hub, priceSource PriceSource, cfg *Config, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		hub:    hub,
		prices: priceSource,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// pass carries the state of one Run through its steps.
type pass struct {
	now          time.Time
	chargerState homeassistant.ChargerState
	decision     Decision
}

// step returns done=true to stop the pipeline early.
type step func(ctx context.Context, p *pass) (done bool, err error)

// Run performs one decision pass at the given time. Aborts are reported
// through Decision.Outcome and a nil error.
func (s *Service) Run(ctx context.Context, now time.Time) (*Decision, error) {
	log.Infof("Smart charge run started at %s", now.Format(time.DateTime))

	p := &pass{now: now}
	steps := []step{
		s.checkSmartCharging,
		s.checkCable,
		s.checkLocation,
		s.computeWindow,
		s.decide,
		s.apply,
	}
	for _, st := range steps {
		done, err := st(ctx, p)
		if err != nil {
			log.Errorf("Smart charge run failed, no command issued: %v", err)
			return nil, err
		}
		if done {
			break
		}
	}

	log.Infof("Smart charge run ended: %s (%s)", p.decision.Outcome, p.decision.Reason)
	return &p.decision, nil
}

func (p *pass) abort(reason string) (bool, error) {
	p.decision.Outcome = OutcomeAborted
	p.decision.Reason = reason
	log.Info(reason + ", aborting")
	return true, nil
}

func (s *Service) checkSmartCharging(ctx context.Context, p *pass) (bool, error) {
	enabled, err := s.hub.ReadSmartChargingEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("reading smart charging flag: %w", err)
	}
	if !enabled {
		return p.abort("Smart charging disabled")
	}
	return false, nil
}

func (s *Service) checkCable(ctx context.Context, p *pass) (bool, error) {
	state, err := s.hub.ReadChargerState(ctx)
	if err != nil {
		return false, fmt.Errorf("reading charger state: %w", err)
	}
	p.chargerState = state
	p.decision.ChargerState = string(state)
	log.Debugf("Charger state is %q", state)

	if state == homeassistant.ChargerStateConnectCable {
		return p.abort("Cable not connected")
	}
	return false, nil
}

func (s *Service) checkLocation(ctx context.Context, p *pass) (bool, error) {
	if !s.cfg.Home.IsSet() || !s.hub.HasLocation() {
		return false, nil
	}

	lat, lng, err := s.hub.ReadLocation(ctx)
	if err != nil {
		return false, fmt.Errorf("reading vehicle location: %w", err)
	}

	home := geo.NewPoint(s.cfg.Home.Latitude, s.cfg.Home.Longitude)
	vehicle := geo.NewPoint(lat, lng)
	distanceMeters := home.GreatCircleDistance(vehicle) * 1000
	log.Debugf("Vehicle is %.1f meters from home", distanceMeters)

	if distanceMeters > s.cfg.Home.RadiusMeters {
		return p.abort(fmt.Sprintf("Vehicle is %.0f meters away from home", distanceMeters))
	}
	return false, nil
}

func (s *Service) computeWindow(ctx context.Context, p *pass) (bool, error) {
	log.Infof("Next departure hour is set to: %d", s.cfg.DepartureHour)
	p.decision.Window.HoursAvailable = HoursToNextDeparture(p.now, s.cfg.DepartureHour)
	log.Infof("Number of hours to next departure is %d", p.decision.Window.HoursAvailable)

	battery, err := s.hub.ReadBatteryPercent(ctx)
	if err != nil {
		if !s.cfg.FailSafeCharge {
			return false, fmt.Errorf("reading battery level: %w", err)
		}
		log.Warnf("Battery level unknown (%v), failing safe towards charging", err)
		p.decision.Outcome = OutcomeForceCharge
		p.decision.Reason = "Battery level unknown, charging now"
		return false, nil
	}

	v := s.cfg.Vehicle
	p.decision.Window.HoursNeeded = HoursNeededToCharge(battery, v.ChargeLimitPercent, v.BatteryCapacityKWh, v.ChargerSpeedKW)
	log.Infof("Battery at %d%% (limit %d%%), hours needed to charge: %d", battery, v.ChargeLimitPercent, p.decision.Window.HoursNeeded)
	return false, nil
}

func (s *Service) decide(ctx context.Context, p *pass) (bool, error) {
	if p.decision.Outcome != "" {
		return false, nil
	}

	w := p.decision.Window
	if w.MustChargeNow() {
		p.decision.Outcome = OutcomeForceCharge
		p.decision.Reason = "Too few hours available to smart charge, charging now"
		return false, nil
	}
	if w.HoursNeeded == 0 {
		p.decision.Outcome = OutcomeChargeOff
		p.decision.Reason = "Battery already at charge limit"
		return false, nil
	}

	points, err := s.prices.Fetch(ctx, p.now)
	if err != nil {
		return false, fmt.Errorf("fetching prices: %w", err)
	}

	schedule, err := CheapestHours(points, p.now.Hour(), s.cfg.DepartureHour, w.HoursNeeded)
	if err != nil {
		return false, err
	}
	p.decision.Schedule = schedule

	if IsSelected(schedule, p.now.Hour()) {
		p.decision.Outcome = OutcomeChargeOn
		p.decision.Reason = "Current hour is cheap, start or continue charging"
	} else {
		p.decision.Outcome = OutcomeChargeOff
		p.decision.Reason = "Current hour is not cheap, stop charging"
		log.Infof("Charging schedule is: %v", schedule)
	}
	return false, nil
}

// apply switches the charger only when its state differs from the outcome.
func (s *Service) apply(ctx context.Context, p *pass) (bool, error) {
	log.Info(p.decision.Reason)

	on := p.decision.Outcome.Charging()
	charging := p.chargerState == homeassistant.ChargerStateCharging
	if on == charging {
		log.Debugf("Charger already in the requested state (%q)", p.chargerState)
		return true, nil
	}

	if s.dryRun {
		log.Infof("Dry run: would turn charging %s", onOff(on))
		return true, nil
	}

	if err := s.hub.SetCharging(ctx, on); err != nil {
		return false, fmt.Errorf("turning charging %s: %w", onOff(on), err)
	}
	p.decision.CommandIssued = true
	log.Infof("EV charging turned %s", onOff(on))
	return true, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
