package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/postalsys/badnet/internal/logging"
	"github.com/postalsys/badnet/internal/loss"
	"github.com/postalsys/badnet/internal/metrics"
	"github.com/postalsys/badnet/internal/recovery"
)

// Fatal relay errors. Returned errors wrap one of these together with the
// underlying socket error.
var (
	ErrBind    = errors.New("bind failed")
	ErrReceive = errors.New("receive failed")
	ErrSend    = errors.New("send failed")
)

var (
	ErrNilTransport   = errors.New("nil transport")
	ErrAlreadyRunning = errors.New("relay already running")
)

// Console lines not derived from a direction.
const noClientLine = "no client yet, skipping"

// Transport is the datagram socket a Relay runs on. *net.UDPConn
// satisfies it.
type Transport interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	LocalAddr() net.Addr
	Close() error
}

// Listen binds a UDP socket on address.
func Listen(address string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrBind, address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBind, err)
	}
	return conn, nil
}

// DirectionStats holds counters for one direction.
type DirectionStats struct {
	Received       uint64 `json:"received"`
	Forwarded      uint64 `json:"forwarded"`
	Dropped        uint64 `json:"dropped"`
	BytesForwarded uint64 `json:"bytes_forwarded"`
}

// Stats is a snapshot of relay activity.
type Stats struct {
	Running        bool           `json:"running"`
	Client         string         `json:"client,omitempty"`
	ClientToServer DirectionStats `json:"client_to_server"`
	ServerToClient DirectionStats `json:"server_to_client"`
	Skipped        uint64         `json:"skipped"`
}

// Total sums both directions.
func (s Stats) Total() DirectionStats {
	return DirectionStats{
		Received:       s.ClientToServer.Received + s.ServerToClient.Received,
		Forwarded:      s.ClientToServer.Forwarded + s.ServerToClient.Forwarded,
		Dropped:        s.ClientToServer.Dropped + s.ServerToClient.Dropped,
		BytesForwarded: s.ClientToServer.BytesForwarded + s.ServerToClient.BytesForwarded,
	}
}

type directionCounters struct {
	received       atomic.Uint64
	forwarded      atomic.Uint64
	dropped        atomic.Uint64
	bytesForwarded atomic.Uint64
}

func (c *directionCounters) snapshot() DirectionStats {
	return DirectionStats{
		Received:       c.received.Load(),
		Forwarded:      c.forwarded.Load(),
		Dropped:        c.dropped.Load(),
		BytesForwarded: c.bytesForwarded.Load(),
	}
}

// Relay forwards datagrams between one client and a fixed target.
type Relay struct {
	cfg    Config
	conn   Transport
	logger *slog.Logger
	out    io.Writer

	policy  *loss.Policy
	metrics *metrics.Metrics
	summary *rate.Sometimes

	// client is written only by the Run goroutine and set at most once.
	client  atomic.Pointer[netip.AddrPort]
	running atomic.Bool

	counters [2]directionCounters
	skipped  atomic.Uint64
}

// New creates a relay on an already bound transport.
func New(cfg Config, conn Transport, logger *slog.Logger) (*Relay, error) {
	if conn == nil {
		return nil, ErrNilTransport
	}
	cfg.Target = normalize(cfg.Target)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	policy, err := loss.NewPolicy(cfg.LossRate, loss.NewSource(cfg.Seed))
	if err != nil {
		return nil, err
	}

	r := &Relay{
		cfg:    cfg,
		conn:   conn,
		logger: logging.Component(logger, "relay"),
		out:    os.Stdout,
		policy: policy,
	}
	if cfg.StatsInterval > 0 {
		r.summary = &rate.Sometimes{Interval: cfg.StatsInterval}
	}
	return r, nil
}

// SetOutput sets the writer console lines go to. Must be called before Run.
func (r *Relay) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	r.out = w
}

// SetMetrics enables Prometheus accounting. Must be called before Run.
func (r *Relay) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
	m.SetClientKnown(r.client.Load() != nil)
}

// SetSource replaces the random source behind the loss decision.
// Must be called before Run.
func (r *Relay) SetSource(src loss.Source) error {
	policy, err := loss.NewPolicy(r.cfg.LossRate, src)
	if err != nil {
		return err
	}
	r.policy = policy
	return nil
}

// LocalAddr returns the address the relay is bound to.
func (r *Relay) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// Target returns the configured server address.
func (r *Relay) Target() netip.AddrPort {
	return r.cfg.Target
}

// Client returns the learned client address, if any.
func (r *Relay) Client() (netip.AddrPort, bool) {
	if c := r.client.Load(); c != nil {
		return *c, true
	}
	return netip.AddrPort{}, false
}

// IsRunning reports whether Run is processing datagrams.
func (r *Relay) IsRunning() bool {
	return r.running.Load()
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() Stats {
	s := Stats{
		Running:        r.running.Load(),
		ClientToServer: r.counters[ClientToServer].snapshot(),
		ServerToClient: r.counters[ServerToClient].snapshot(),
		Skipped:        r.skipped.Load(),
	}
	if c, ok := r.Client(); ok {
		s.Client = c.String()
	}
	return s
}

// Run receives and relays datagrams until a fatal socket error occurs or
// ctx is cancelled. Cancellation closes the transport and returns nil.
func (r *Relay) Run(ctx context.Context) (err error) {
	defer recovery.RecoverToError(r.logger, "relay", &err)

	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	stop := context.AfterFunc(ctx, func() {
		r.conn.Close()
	})
	defer stop()

	r.logger.Info("relay started",
		logging.KeyLocalAddr, r.conn.LocalAddr().String(),
		logging.KeyTarget, r.cfg.Target.String(),
		logging.KeyLossRate, r.cfg.LossRate)

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrReceive, err)
		}

		if err := r.handle(buf[:n], from); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if r.summary != nil {
			r.summary.Do(r.logSummary)
		}
	}
}

// handle runs one classify, learn, decide, forward cycle.
func (r *Relay) handle(payload []byte, from net.Addr) error {
	sender, err := addrPortOf(from)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReceive, err)
	}

	dir := ClientToServer
	if sender == r.cfg.Target {
		dir = ServerToClient
	}

	counters := &r.counters[dir]
	counters.received.Add(1)
	r.metrics.RecordReceived(dir.Label(), len(payload))

	if dir == ClientToServer && r.client.Load() == nil {
		r.learn(sender)
	}

	if !r.policy.Forward() {
		counters.dropped.Add(1)
		r.metrics.RecordDropped(dir.Label())
		r.println(dir.String() + " (dropped)")
		return nil
	}

	if r.cfg.Debug {
		r.println(dir.String())
	}

	dst := r.cfg.Target
	if dir == ServerToClient {
		client := r.client.Load()
		if client == nil {
			r.skipped.Add(1)
			r.metrics.RecordSkipped()
			r.println(noClientLine)
			return nil
		}
		dst = *client
	}

	if _, err := r.conn.WriteTo(payload, net.UDPAddrFromAddrPort(dst)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSend, dst, err)
	}

	counters.forwarded.Add(1)
	counters.bytesForwarded.Add(uint64(len(payload)))
	r.metrics.RecordForwarded(dir.Label(), len(payload))
	return nil
}

func (r *Relay) learn(client netip.AddrPort) {
	r.client.Store(&client)
	r.metrics.SetClientKnown(true)
	r.logger.Info("client learned", logging.KeyClient, client.String())
}

func (r *Relay) println(line string) {
	fmt.Fprintln(r.out, line)
}

func (r *Relay) logSummary() {
	s := r.Stats()
	total := s.Total()
	r.logger.Info("relay stats",
		logging.KeyClient, s.Client,
		logging.KeyReceived, total.Received,
		logging.KeyForwarded, total.Forwarded,
		logging.KeyDropped, total.Dropped,
		logging.KeySkipped, s.Skipped,
		logging.KeyBytes, humanize.Bytes(total.BytesForwarded))
}
