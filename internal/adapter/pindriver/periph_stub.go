//go:build !edge

package pindriver

import (
	"errors"

	"pinengine/internal/domain"
)

func newHardware(Options) (domain.PinDriver, error) {
	return nil, errors.New("periph backend requires building with -tags edge")
}
