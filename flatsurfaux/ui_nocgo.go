//go:build tinygo || !cgo

package flatsurfaux

import (
	"errors"

	"github.com/soypat/flatsurf"
)

func ui(world *flatsurf.World, cfg ViewerConfig) error {
	return errors.New("require cgo for interactive viewer")
}
