package health

import "errors"

var ErrUnknownSignal = errors.New("unknown connectivity signal")
