package service

import "errors"

var errNoReplenisher = errors.New("replenisher_not_configured")
