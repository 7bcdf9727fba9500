package smartcharge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/denysvitali/ha-smartcharge/prices"
)

// Plan is a read-only view of the hours a pass would pick.
type Plan struct {
	Now       time.Time
	Window    Window
	Reachable []prices.PricePoint
	Schedule  []prices.PricePoint
}

// Selected reports whether p is one of the planned charging hours.
func (pl *Plan) Selected(p prices.PricePoint) bool {
	return slices.Contains(pl.Schedule, p)
}

// Plan computes the charging plan without gating on the hub flags and without
// issuing any command. A non-nil batteryPercent skips the battery read.
func (s *Service) Plan(ctx context.Context, now time.Time, batteryPercent *int) (*Plan, error) {
	var battery int
	if batteryPercent != nil {
		battery = *batteryPercent
	} else {
		var err error
		battery, err = s.hub.ReadBatteryPercent(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading battery level: %w", err)
		}
	}

	v := s.cfg.Vehicle
	plan := &Plan{
		Now: now,
		Window: Window{
			HoursAvailable: HoursToNextDeparture(now, s.cfg.DepartureHour),
			HoursNeeded:    HoursNeededToCharge(battery, v.ChargeLimitPercent, v.BatteryCapacityKWh, v.ChargerSpeedKW),
		},
	}

	points, err := s.prices.Fetch(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	plan.Reachable = ReachableWindow(points, now.Hour(), s.cfg.DepartureHour)
	plan.Schedule, err = CheapestHours(points, now.Hour(), s.cfg.DepartureHour, plan.Window.HoursNeeded)
	if err != nil {
		return nil, err
	}
	return plan, nil
}
