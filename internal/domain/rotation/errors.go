package rotation

import "errors"

var ErrNoSelection = errors.New("no rotation selected yet")
