package booking

import (
	"errors"
	"net/http"

	"github.com/guarzo/staybook/common"
)

var (
	// ErrInvalidBooking rejects a booking request before it reaches the API.
	ErrInvalidBooking = errors.New("invalid booking request")
	// ErrNotAdmin is returned for admin-only calls made by a known non-admin user.
	ErrNotAdmin = errors.New("statistics require an admin account")
	// ErrEmptyResponse means the envelope carried no data.
	ErrEmptyResponse = errors.New("empty response data")
)

func asHTTPError(err error) (*common.HTTPError, bool) {
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	httpErr, ok := asHTTPError(err)
	return ok && httpErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 the client could not recover from.
func IsUnauthorized(err error) bool {
	httpErr, ok := asHTTPError(err)
	return ok && httpErr.StatusCode == http.StatusUnauthorized
}
