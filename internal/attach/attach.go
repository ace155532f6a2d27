// Package attach resolves attachment path references into open file
// bindings on an outgoing message.
package attach

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shineum/smtp-send-lite/internal/message"
)

// NotFoundError reports an attachment path that could not be resolved to a
// readable file. It is non-terminating: the path contributes no binding
// and the remaining paths are still processed.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot resolve attachment %q: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Resolver binds attachment files to a message. It may be invoked any
// number of times for one message; bindings accumulate in input order.
type Resolver struct {
	errs []*NotFoundError
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Bind resolves each path to an absolute, readable file and appends a
// binding to the message for every path that resolves. A failed path is
// recorded and skipped; it never aborts the remaining paths.
func (r *Resolver) Bind(msg *message.Message, paths []string) {
	for _, path := range paths {
		att, err := resolve(path)
		if err != nil {
			r.errs = append(r.errs, &NotFoundError{Path: path, Err: err})
			continue
		}
		msg.Attachments = append(msg.Attachments, att)
	}
}

// Errors returns the resolution failures recorded so far, one per skipped
// path, in input order.
func (r *Resolver) Errors() []*NotFoundError {
	return r.errs
}

// resolve turns one path reference into an open attachment binding.
func resolve(path string) (*message.Attachment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}

	return &message.Attachment{
		Path: abs,
		Name: filepath.Base(abs),
		File: f,
	}, nil
}
