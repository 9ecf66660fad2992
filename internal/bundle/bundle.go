package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/psantana5/toolshim/internal/stdio"
)

// Main is a main-style entry point. It writes to the streams it is handed
// and ends either by returning or by calling exitguard.Exit.
type Main func(ctx context.Context, streams stdio.Streams, args []string) error

// Bundle is a loadable unit of code that exposes entry points by name.
type Bundle interface {
	Lookup(entry string) (Main, error)
}

// Opener opens the bundle at location.
type Opener func(location string) (Bundle, error)

var (
	ErrBundleNotFound = errors.New("bundle not found")
	ErrUnknownBundle  = errors.New("no opener handles this bundle")
	ErrEntryNotFound  = errors.New("entry point not found")
	ErrInvalidBundle  = errors.New("invalid bundle")
)

// ResolveError is returned when an entry point cannot be resolved.
type ResolveError struct {
	Location string
	Entry    string
	Err      error
}

func (e *ResolveError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("resolve %s: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("resolve %s in %s: %v", e.Entry, e.Location, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Static is an in-process bundle of entry points keyed by name.
type Static map[string]Main

// Lookup implements Bundle
func (s Static) Lookup(entry string) (Main, error) {
	m, ok := s[entry]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
	}
	return m, nil
}

// Chain returns an Opener that asks each opener in turn. An opener that
// answers ErrUnknownBundle passes the location on; any other answer is final.
func Chain(openers ...Opener) Opener {
	return func(location string) (Bundle, error) {
		for _, open := range openers {
			b, err := open(location)
			if errors.Is(err, ErrUnknownBundle) {
				continue
			}
			return b, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, location)
	}
}
