package hardware

import "github.com/juju/errors"

// Shared driver sentinels. Bus transaction failures are typed in
// package i2c; these cover the driver layer above it.
var (
	ErrNotInitialized = errors.New("not initialized")
)
