package smartcharge

import (
	"math"
	"time"
)

// Window is the charging budget of one pass: hours left before departure
// and hours of charging still required.
type Window struct {
	HoursAvailable int `json:"hours_available"`
	HoursNeeded    int `json:"hours_needed"`
}

// MustChargeNow reports whether the remaining time is too short to be picky
// about prices.
func (w Window) MustChargeNow() bool {
	return w.HoursNeeded >= w.HoursAvailable
}

// HoursToNextDeparture returns the whole hours between now and the next
// departure. It is 0 during the departure hour itself.
func HoursToNextDeparture(now time.Time, departureHour int) int {
	hour := now.Hour()
	if hour > departureHour {
		return departureHour + 24 - hour
	}
	return departureHour - hour
}

// HoursNeededToCharge returns the whole hours of charging needed to bring the
// battery up to the charge limit. Partial hours count as a full hour.
func HoursNeededToCharge(batteryPercent, chargeLimitPercent int, batteryCapacityKWh, chargerSpeedKW float64) int {
	if batteryPercent >= chargeLimitPercent {
		return 0
	}
	if chargerSpeedKW <= 0 {
		return 0
	}

	kwhToCharge := batteryCapacityKWh * float64(chargeLimitPercent-batteryPercent) / 100
	hours := kwhToCharge / chargerSpeedKW
	return int(math.Ceil(hours - 1e-9))
}
