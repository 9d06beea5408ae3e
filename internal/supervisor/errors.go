package supervisor

import "errors"

var (
	// ErrNotConnected is returned when writing without an established
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNotAuthenticated is returned when emitting a session message before
	// the service accepted the token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// IsConnectionError reports whether err means the connection was unusable.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrNotAuthenticated)
}
