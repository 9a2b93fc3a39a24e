//go:build !linux

package btport

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// dialRFCOMM has no portable implementation outside Linux's BlueZ/
// AF_BLUETOOTH socket family; other platforms' Bluetooth stacks
// expose RFCOMM through vendor-specific frameworks this core does not
// target (spec.md scopes Bluetooth to "RFCOMM channel (usually 1)"
// without naming a cross-platform API).
func dialRFCOMM(addr string, channel int, timeout time.Duration) (net.Conn, error) {
	return nil, errors.New("btport: rfcomm transport is only implemented on linux")
}
