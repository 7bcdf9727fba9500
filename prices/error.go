package prices

import (
	"errors"
	"fmt"
)

var ErrPriceDataUnavailable = errors.New("price data unavailable")

// ErrNoData is returned when the feed has not published prices for a day.
var ErrNoData = fmt.Errorf("%w: no prices published", ErrPriceDataUnavailable)
