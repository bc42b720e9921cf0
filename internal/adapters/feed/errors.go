package feed

import "errors"

// Sentinel errors for feed fetching and decoding.
var (
	ErrFetch             = errors.New("feed fetch failed")
	ErrHTTPStatus        = errors.New("unexpected http status")
	ErrUnsupportedScheme = errors.New("unsupported feed location scheme")
	ErrUnsupportedFormat = errors.New("unsupported feed format")
	ErrDecode            = errors.New("feed decode failed")
	ErrSchema            = errors.New("feed payload does not match schema")
)
