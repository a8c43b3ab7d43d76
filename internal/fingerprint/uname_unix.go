//go:build unix

package fingerprint

import (
	"context"

	"golang.org/x/sys/unix"
)

// unameStrategy reads the node name from uname(2) without spawning a process.
type unameStrategy struct{}

func (unameStrategy) Name() string { return "uname" }

func (unameStrategy) Attempt(context.Context) (RawSample, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return RawSample{}, &QueryError{Method: "uname", Err: err}
	}
	return RawSample{Method: "uname", Text: unix.ByteSliceToString(u.Nodename[:])}, nil
}
