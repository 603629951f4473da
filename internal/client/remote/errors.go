package remote

import (
	"errors"

	"github.com/01011010/notesum-hybrid/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = common.ErrUnauthorized
)
