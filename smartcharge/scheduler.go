package smartcharge

import (
	"cmp"
	"slices"

	"github.com/denysvitali/ha-smartcharge/prices"
)

// TargetDay returns the day tag (prices.Today or prices.Tomorrow) on which the
// next departure falls.
func TargetDay(currentHour, departureHour int) int {
	if currentHour >= departureHour {
		return prices.Tomorrow
	}
	return prices.Today
}

// ReachableWindow drops the price points that lie after the next departure.
// The input order is preserved.
func ReachableWindow(points []prices.PricePoint, currentHour, departureHour int) []prices.PricePoint {
	targetDay := TargetDay(currentHour, departureHour)

	reachable := make([]prices.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Day == targetDay && p.Hour > departureHour {
			continue
		}
		reachable = append(reachable, p)
	}
	return reachable
}

// CheapestHours returns the hoursNeeded cheapest reachable hours, cheapest
// first. Equal prices keep their feed order.
func CheapestHours(points []prices.PricePoint, currentHour, departureHour, hoursNeeded int) ([]prices.PricePoint, error) {
	if len(points) == 0 {
		return nil, ErrPriceDataUnavailable
	}

	sorted := ReachableWindow(points, currentHour, departureHour)
	slices.SortStableFunc(sorted, func(a, b prices.PricePoint) int {
		return cmp.Compare(a.Price, b.Price)
	})

	if hoursNeeded < 0 {
		hoursNeeded = 0
	}
	if hoursNeeded > len(sorted) {
		hoursNeeded = len(sorted)
	}
	return sorted[:hoursNeeded], nil
}

// IsSelected reports whether the current hour of today is part of schedule.
func IsSelected(schedule []prices.PricePoint, currentHour int) bool {
	return slices.ContainsFunc(schedule, func(p prices.PricePoint) bool {
		return p.Day == prices.Today && p.Hour == currentHour
	})
}

// ShouldChargeNow decides whether the current hour is one of the hoursNeeded
// cheapest hours before departure.
func ShouldChargeNow(points []prices.PricePoint, currentHour, departureHour, hoursNeeded int) (bool, error) {
	if hoursNeeded <= 0 {
		return false, nil
	}

	schedule, err := CheapestHours(points, currentHour, departureHour, hoursNeeded)
	if err != nil {
		return false, err
	}
	return IsSelected(schedule, currentHour), nil
}
