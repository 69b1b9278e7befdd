package domain

import "errors"

// ErrWaitTimeout is returned by MonitorHandle.Wait when the monitor is still alive at the deadline.
var ErrWaitTimeout = errors.New("timed out waiting for monitor to exit")
