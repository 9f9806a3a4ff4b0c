package crawler

import (
	"errors"
	"fmt"
)

// ErrInvalidRoot is returned when the root URL cannot start a crawl.
var ErrInvalidRoot = errors.New("invalid root url")

// FetchError reports a failed page or document download. It never aborts
// a crawl.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
