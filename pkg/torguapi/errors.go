package torguapi

import "github.com/rotisserie/eris"

var (
	// ErrTorguapi is the root of every error returned by this package
	ErrTorguapi = eris.New("torguapi error")
	// ErrInvalidRequest marks errors caused by bad query parameters
	ErrInvalidRequest = eris.Wrap(ErrTorguapi, "invalid request")
)
