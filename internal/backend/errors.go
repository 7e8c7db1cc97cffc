package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNetwork    = errors.New("network unavailable")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
)

var permissionCodes = map[string]struct{}{
	"42501": {}, // insufficient_privilege
	"28000": {}, // invalid_authorization_specification
	"28P01": {}, // invalid_password
}

// classify maps store errors onto the backend taxonomy. Server-side errors
// that are not about permissions are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrPermission) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := permissionCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ErrPermission, err)
		}
		return err
	}
	// Anything that never reached the server is connectivity.
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

var transientPatterns = []string{
	"stream removed",
	"connection reset",
	"transport is closing",
	"broken pipe",
}

// IsTransientStream reports errors that heal on the next listener
// reconnect and should never reach the user.
func IsTransientStream(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
