//go:build linux

package btport

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// dialRFCOMM opens a raw AF_BLUETOOTH/BTPROTO_RFCOMM socket to addr on
// the given channel, the kernel-level equivalent of what BlueZ's
// ConnectProfile negotiates at the D-Bus level. Grounded on the same
// raw-syscall style as the pack's goserial port_linux.go (direct
// golang.org/x/sys/unix socket calls instead of a higher abstraction).
func dialRFCOMM(addr string, channel int, timeout time.Duration) (net.Conn, error) {
	mac, err := parseMAC(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, errors.Wrap(err, "rfcomm: socket")
	}

	sa := &unix.SockaddrRFCOMM{Addr: mac, Channel: uint8(channel)}
	connectErr := make(chan error, 1)
	go func() { connectErr <- unix.Connect(fd, sa) }()

	select {
	case err := <-connectErr:
		if err != nil {
			unix.Close(fd)
			return nil, errors.Wrap(err, "rfcomm: connect")
		}
	case <-time.After(timeout * 20):
		unix.Close(fd)
		return nil, errors.New("rfcomm: connect timed out")
	}

	f := os.NewFile(uintptr(fd), "rfcomm")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrap(err, "rfcomm: wrap fd")
	}
	return conn, nil
}

func parseMAC(addr string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return mac, errors.Errorf("rfcomm: invalid device address %q", addr)
	}
	// unix.SockaddrRFCOMM.Addr is little-endian relative to the
	// human-readable address string.
	for i := 0; i < 6; i++ {
		mac[i] = hw[5-i]
	}
	return mac, nil
}
