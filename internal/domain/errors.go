package domain

import (
	"errors"

	"github.com/park285/cheese-chess/internal/chess"
)

// Error taxonomy shared by the session, auth and transport layers. Wrap with
// fmt.Errorf("%w: ...") to add detail; classify with errors.Is.
var (
	ErrUnauthorized   = errf("unauthorized")
	ErrAlreadyTaken   = errf("already taken")
	ErrNotFound       = errf("not found")
	ErrDataAccess     = errf("data access failure")
	ErrInvalidRequest = errf("bad request")
	// ErrInvalidMove is the engine's sentinel so engine errors classify without re-wrapping.
	ErrInvalidMove = chess.ErrInvalidMove
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// Message renders err for a client. Storage failures and unclassified errors
// are not echoed verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrDataAccess):
		return "Error: " + ErrDataAccess.Error()
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrAlreadyTaken),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidMove):
		return "Error: " + err.Error()
	default:
		return "Error: internal server error"
	}
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAlreadyTaken) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidMove)
}
