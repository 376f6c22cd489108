// Package trusty names the TEE sidecar log producer collaborator,
// grounded in original_source/logd/main.cpp's TrustyLog::create wiring.
// It is deliberately inert: this daemon has no TEE sidecar to talk to,
// but the collaborator is still a named type so cmd/logd has something
// real to wire instead of a dangling TODO.
package trusty

import "context"

// Reader is the TEE sidecar collaborator. Run blocks until ctx is
// cancelled.
type Reader struct{}

func New() *Reader { return &Reader{} }

func (r *Reader) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
