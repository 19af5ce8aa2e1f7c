package protocol

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/cemot/soccervision/logging"
)

// FirmwareLink is the UDP pipe to the wheel/dribbler/coilgun firmware: a
// full-duplex, text, newline-terminated datagram socket. A background
// goroutine blocks on recv and pushes parsed inbound commands onto a
// mutex-protected queue; the main loop drains it once per tick.
type FirmwareLink struct {
	logger logging.Logger

	conn *net.UDPConn
	Inbound Queue

	mu sync.Mutex

	wg *sync.WaitGroup
}

// DialFirmware opens the UDP socket to host:port. A bind/dial failure here
// is the one unrecoverable condition in this repository's error model and
// is returned to the caller to abort process startup.
func DialFirmware(logger logging.Logger, host string, port int) (*FirmwareLink, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, errors.Wrap(err, "resolving firmware address")
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing firmware socket")
	}
	return &FirmwareLink{logger: logger, conn: conn, wg: &sync.WaitGroup{}}, nil
}

// Start launches the background receive goroutine. It runs until ctx is
// canceled, at which point it closes the socket and returns.
func (f *FirmwareLink) Start(ctx context.Context) {
	f.wg.Add(1)
	goutils.ManagedGo(func() {
		scanner := bufio.NewScanner(f.conn)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			if !IsValid(line) {
				f.logger.Warnf("firmware link: malformed command %q", line)
				continue
			}
			f.Inbound.Push(Parse(line))
		}
		if err := scanner.Err(); err != nil {
			f.logger.Warnw("firmware link: receive error", "error", err)
		}
	}, f.wg.Done)

	goutils.ManagedGo(func() {
		<-ctx.Done()
		f.conn.Close()
	}, func() {})
}

// Publish writes one outbound text command to the firmware socket.
func (f *FirmwareLink) Publish(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.conn.Write([]byte(text + "\n")); err != nil {
		f.logger.Warnw("firmware link: send error", "error", err)
	}
}

// Close waits for the background goroutine to exit after ctx has been
// canceled by the caller.
func (f *FirmwareLink) Close() {
	f.wg.Wait()
}
