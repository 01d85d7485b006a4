package relay

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/postalsys/badnet/internal/loss"
)

// MaxDatagramSize is the size of the receive buffer.
const MaxDatagramSize = 65536

// Config holds configuration for a Relay.
type Config struct {
	// Target is the server endpoint. Datagrams from it travel to the
	// client; all other datagrams are sent to it.
	Target netip.AddrPort

	// LossRate is the drop probability in [0, 1].
	LossRate float64

	// Debug prints a console line for every forwarded datagram.
	Debug bool

	// Seed seeds the loss policy's random source.
	// 0 seeds from the current time.
	Seed int64

	// StatsInterval is the minimum time between "relay stats" log lines.
	// 0 disables them.
	StatsInterval time.Duration
}

// Validate checks the relay configuration.
func (c *Config) Validate() error {
	if !c.Target.IsValid() {
		return errors.New("target address is required")
	}
	if c.Target.Port() == 0 {
		return errors.New("target port must be non-zero")
	}
	if err := loss.ValidateRate(c.LossRate); err != nil {
		return err
	}
	if c.StatsInterval < 0 {
		return errors.New("stats interval must not be negative")
	}
	return nil
}

// ResolveTarget resolves a host:port string into a comparable address.
func ResolveTarget(address string) (netip.AddrPort, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve target %s: %w", address, err)
	}
	return normalize(addr.AddrPort()), nil
}

// normalize unmaps IPv4-mapped IPv6 addresses so that an IPv4 endpoint
// compares equal whichever form the socket reports it in.
func normalize(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// addrPortOf converts a transport address into a normalized AddrPort.
func addrPortOf(addr net.Addr) (netip.AddrPort, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return normalize(a.AddrPort()), nil
	case nil:
		return netip.AddrPort{}, errors.New("missing sender address")
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("unsupported sender address %v: %w", addr, err)
		}
		return normalize(ap), nil
	}
}
