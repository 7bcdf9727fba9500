package homeassistant

import (
	"net/http"
)

const userAgent = "ha-smartcharge"

type bearerRoundTripper struct {
	inner http.RoundTripper
	token string
}

func (b bearerRoundTripper) RoundTrip(request *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req := request.Clone(request.Context())
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	inner := b.inner
	if inner == nil {
		inner = http.DefaultTransport
	}

	response, err := inner.RoundTrip(req)
	if err != nil {
		return response, err
	}

	if response.StatusCode == http.StatusUnauthorized {
		log.Warnf("Home Assistant rejected the access token for %s %s", req.Method, req.URL.Path)
	}
	return response, nil
}

var _ http.RoundTripper = &bearerRoundTripper{}
