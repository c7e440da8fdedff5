package types

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidOption    = goerr.New("invalid option")
	ErrValidationFailed = goerr.New("validation failed")

	// ErrRemoteFetch marks a failed call to GitHub or Azure DevOps. The cache is
	// left as it was.
	ErrRemoteFetch = goerr.New("remote fetch failed")

	// ErrStorageUnavailable marks a failure of the durable entity store. It must
	// never be read as "cache empty".
	ErrStorageUnavailable = goerr.New("storage unavailable")

	ErrCloneFailed = goerr.New("clone failed")
)

// kindError classifies cause as kind while keeping cause in the chain.
type kindError struct {
	kind  error
	cause error
}

func (x *kindError) Error() string   { return x.kind.Error() + ": " + x.cause.Error() }
func (x *kindError) Unwrap() []error { return []error{x.kind, x.cause} }

// WrapAs wraps cause with msg so that errors.Is and errors.As match both kind
// and cause.
func WrapAs(kind, cause error, msg string, values ...goerr.Option) error {
	return goerr.Wrap(&kindError{kind: kind, cause: cause}, msg, values...)
}
