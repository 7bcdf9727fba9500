package smartcharge

import (
	"errors"

	"github.com/denysvitali/ha-smartcharge/prices"
)

var ErrConfiguration = errors.New("invalid configuration")

// ErrPriceDataUnavailable is returned when a price decision is requested
// without any price points.
var ErrPriceDataUnavailable = prices.ErrPriceDataUnavailable
