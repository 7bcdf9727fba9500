package prices

import (
	"fmt"
	"time"
)

const (
	Today    = 0
	Tomorrow = 1
)

// PricePoint is the price of one hour, tagged with the day it belongs to
// relative to the fetch (Today or Tomorrow).
type PricePoint struct {
	Day   int     `json:"day"`
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

func (p PricePoint) String() string {
	return fmt.Sprintf("d%d %02d:00 %.4f", p.Day, p.Hour, p.Price)
}

// Entry is one element of the feed's JSON array.
type Entry struct {
	SEKPerKWh float64   `json:"SEK_per_kWh"`
	EURPerKWh float64   `json:"EUR_per_kWh"`
	EXR       float64   `json:"EXR"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

type HourlyPrice struct {
	Hour  int
	Price float64
}

// HourlyAverages collapses entries sharing an hour (quarter-hour feeds) into
// one averaged price per hour. Hours keep the order in which they first appear.
func HourlyAverages(entries []Entry) []HourlyPrice {
	var order []int
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, e := range entries {
		h := e.TimeStart.Hour()
		if _, ok := counts[h]; !ok {
			order = append(order, h)
		}
		sums[h] += e.SEKPerKWh
		counts[h]++
	}

	hourly := make([]HourlyPrice, 0, len(order))
	for _, h := range order {
		hourly = append(hourly, HourlyPrice{Hour: h, Price: sums[h] / float64(counts[h])})
	}
	return hourly
}
