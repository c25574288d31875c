package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/config"
	"github.com/opd-ai/go-vehicle/pkg/logging"
	"github.com/opd-ai/go-vehicle/pkg/replication"
	"github.com/opd-ai/go-vehicle/pkg/validation"
)

// ErrChannelClosed is returned when publishing on a closed channel
var ErrChannelClosed = errors.New("state channel closed")

// StateChannel is a UDP transport for the drive triple, wheel slip
// transitions and the chassis pose. A listening channel keeps the latest
// triple and pose received and queues slips until they are taken; a dialed
// channel publishes every Write, RelaySlip and RelayPose to its peer. There
// are no sequence numbers: late datagrams simply overwrite, and a silent
// peer leaves the last value in place.
type StateChannel struct {
	mu       sync.RWMutex
	latest   mgl64.Vec3
	slips    []replication.Slip
	pose     replication.Pose
	havePose bool

	listener  net.PacketConn
	validator *validation.DatagramValidator
	peer      net.Conn
	breaker   *Breaker
	logger    *logging.Logger

	received atomic.Uint64
	dropped  atomic.Uint64
	limited  atomic.Uint64
	failed   atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

func newStateChannel(logger *logging.Logger) *StateChannel {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StateChannel{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Listen binds addr and receives triples until ctx is done or Close is
// called. Each source is held to cfg.MaxDatagramsPerSecond.
func Listen(ctx context.Context, addr string, cfg config.NetworkConfig, logger *logging.Logger) (*StateChannel, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, logging.WrapError(err, "failed to listen on %s", addr)
	}

	c := newStateChannel(logger)
	c.listener = conn
	c.validator = validation.NewDatagramValidator(MaxDatagramSize, cfg.MaxDatagramsPerSecond)
	c.logger.Info(ctx, "state channel listening", "address", conn.LocalAddr().String())

	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.watch(ctx)
	return c, nil
}

// Dial creates a channel that publishes each Write to addr through a
// circuit breaker configured from cfg.
func Dial(ctx context.Context, addr string, cfg config.NetworkConfig, logger *logging.Logger) (*StateChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, logging.WrapError(err, "failed to dial %s", addr)
	}

	c := newStateChannel(logger)
	c.peer = conn
	c.breaker = NewBreaker("vehicle-sync "+addr, cfg, c.logger)
	c.logger.Info(ctx, "state channel publishing", "peer", addr)

	c.wg.Add(1)
	go c.watch(ctx)
	return c, nil
}

func (c *StateChannel) watch(ctx context.Context) {
	defer c.wg.Done()
	select {
	case <-ctx.Done():
		c.shutdown()
	case <-c.done:
	}
}

func (c *StateChannel) readLoop(ctx context.Context) {
	defer c.wg.Done()
	buf := make([]byte, 512)
	for {
		n, from, err := c.listener.ReadFrom(buf)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn(ctx, "state channel read failed", "error", err)
			continue
		}

		if err := c.validator.Validate(buf[:n], from.String()); err != nil {
			if errors.Is(err, validation.ErrRateLimited) {
				c.limited.Add(1)
			} else {
				c.dropped.Add(1)
			}
			continue
		}

		if err := c.handle(buf[:n]); err != nil {
			c.dropped.Add(1)
			c.logger.Debug(ctx, "dropped datagram", "from", from.String(), "error", err)
			continue
		}
		c.received.Add(1)
	}
}

func (c *StateChannel) handle(b []byte) error {
	switch KindOf(b) {
	case KindTriple:
		v, err := DecodeTriple(b)
		if err != nil {
			return err
		}
		c.store(v)
	case KindSlip:
		s, err := DecodeSlip(b)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.slips = replication.QueueSlip(c.slips, s)
		c.mu.Unlock()
	case KindPose:
		p, err := DecodePose(b)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.pose = p
		c.havePose = true
		c.mu.Unlock()
	default:
		return ErrMalformedDatagram
	}
	return nil
}

func (c *StateChannel) store(v mgl64.Vec3) {
	c.mu.Lock()
	c.latest = v
	c.mu.Unlock()
}

// Read returns the latest triple
func (c *StateChannel) Read() mgl64.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Write stores v locally and publishes it to the peer, if any. Publishing
// failures are counted, never returned, since Write runs every frame.
func (c *StateChannel) Write(v mgl64.Vec3) {
	c.store(v)
	if c.peer == nil {
		return
	}
	if err := c.Publish(context.Background(), v); err != nil {
		c.failed.Add(1)
	}
}

// Publish sends v to the peer through the circuit breaker
func (c *StateChannel) Publish(ctx context.Context, v mgl64.Vec3) error {
	return c.send(ctx, EncodeTriple(v))
}

// RelaySlip publishes a slip transition to the peer, if any. Failures are
// counted like those of Write.
func (c *StateChannel) RelaySlip(s replication.Slip) {
	if c.peer == nil {
		return
	}
	if err := c.PublishSlip(context.Background(), s); err != nil {
		c.failed.Add(1)
	}
}

// PublishSlip sends a slip transition to the peer through the circuit
// breaker.
func (c *StateChannel) PublishSlip(ctx context.Context, s replication.Slip) error {
	return c.send(ctx, EncodeSlip(s))
}

// TakeSlips returns and clears the slip transitions received since the
// last call.
func (c *StateChannel) TakeSlips() []replication.Slip {
	c.mu.Lock()
	defer c.mu.Unlock()
	slips := c.slips
	c.slips = nil
	return slips
}

// RelayPose publishes the chassis pose to the peer, if any
func (c *StateChannel) RelayPose(p replication.Pose) {
	if c.peer == nil {
		return
	}
	if err := c.send(context.Background(), EncodePose(p)); err != nil {
		c.failed.Add(1)
	}
}

// LatestPose returns the last pose received
func (c *StateChannel) LatestPose() (replication.Pose, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose, c.havePose
}

func (c *StateChannel) send(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	if c.peer == nil {
		return nil
	}
	return c.breaker.Execute(ctx, func() error {
		_, err := c.peer.Write(payload)
		return err
	})
}

// LocalAddr returns the bound address of a listening channel, or the local
// end of a dialed one.
func (c *StateChannel) LocalAddr() net.Addr {
	if c.listener != nil {
		return c.listener.LocalAddr()
	}
	return c.peer.LocalAddr()
}

// Received returns the number of valid datagrams received
func (c *StateChannel) Received() uint64 { return c.received.Load() }

// Dropped returns the number of malformed datagrams discarded
func (c *StateChannel) Dropped() uint64 { return c.dropped.Load() }

// Limited returns the number of datagrams refused by the rate limit
func (c *StateChannel) Limited() uint64 { return c.limited.Load() }

// Failed returns the number of publishes that did not reach the wire
func (c *StateChannel) Failed() uint64 { return c.failed.Load() }

// Breaker returns the publishing breaker, nil on a listen-only channel
func (c *StateChannel) Breaker() *Breaker { return c.breaker }

func (c *StateChannel) shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.listener != nil {
			err = errors.Join(err, c.listener.Close())
			c.validator.Close()
		}
		if c.peer != nil {
			err = errors.Join(err, c.peer.Close())
		}
	})
	return err
}

// Close stops the reader and releases the sockets. The last received
// triple stays readable.
func (c *StateChannel) Close() error {
	err := c.shutdown()
	c.wg.Wait()
	return err
}
