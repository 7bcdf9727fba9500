package homeassistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var ErrUpstreamUnavailable = errors.New("home assistant unavailable")

type ErrorResponse struct {
	Message string `json:"message"`
}

// getError turns a non-2xx response into an ErrUpstreamUnavailable, carrying
// the hub's message when it sends one.
func getError(res *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil || len(body) == 0 {
		return fmt.Errorf("%w: unexpected status %s", ErrUpstreamUnavailable, res.Status)
	}

	var errorResponse ErrorResponse
	if err := json.Unmarshal(body, &errorResponse); err != nil || errorResponse.Message == "" {
		return fmt.Errorf("%w: unexpected status %s", ErrUpstreamUnavailable, res.Status)
	}
	return fmt.Errorf("%w: %s: %s", ErrUpstreamUnavailable, res.Status, errorResponse.Message)
}
