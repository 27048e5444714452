package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the teardown state of a connection pair.
type State int32

const (
	StateActive State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Pair couples a client connection with its upstream connection. Frames
// are relayed verbatim in both directions until either leg closes or
// errors, at which point both legs are shut down together.
type Pair struct {
	ID string

	log       zerolog.Logger
	client    *leg
	upstream  *leg
	keepalive time.Duration
	grace     time.Duration

	mu    sync.Mutex
	state State

	closing chan struct{} // closed on Active -> Closing; stops the keepalive driver
	done    chan struct{} // closed on reaching Closed

	pumps   sync.WaitGroup
	dropped atomic.Int64

	onClosed func(*Pair)
}

func newPair(log zerolog.Logger, client, upstream *websocket.Conn, keepalive, grace time.Duration, onClosed func(*Pair)) *Pair {
	id := uuid.NewString()
	p := &Pair{
		ID:        id,
		log:       log.With().Str("pair", id).Logger(),
		client:    newLeg("client", client),
		upstream:  newLeg("upstream", upstream),
		keepalive: keepalive,
		grace:     grace,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		onClosed:  onClosed,
	}
	// Registered up front so a Terminate racing Run cannot observe a
	// zero wait group.
	p.pumps.Add(2)
	return p
}

// State reports the pair's current teardown state.
func (p *Pair) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the pair has reached Closed and released both legs.
func (p *Pair) Done() <-chan struct{} { return p.done }

// Run starts both relay directions and the keepalive driver, then blocks
// until the pair is fully torn down.
func (p *Pair) Run() {
	go p.pump(p.client, p.upstream)
	go p.pump(p.upstream, p.client)
	go p.keepaliveLoop()
	<-p.done
}

// pump relays frames from src to dst until src stops producing them.
// Running each direction on its own goroutine preserves per-direction
// frame order.
func (p *Pair) pump(src, dst *leg) {
	defer p.pumps.Done()
	for {
		msgType, data, err := src.conn.ReadMessage()
		if err != nil {
			src.markClosed()
			code, reason := closeCause(src, err)
			p.Teardown(code, reason)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if !dst.isOpen() {
			// Best effort: the pair is already on its way down,
			// queueing would only delay teardown.
			p.dropped.Add(1)
			continue
		}
		if err := dst.writeMessage(msgType, data); err != nil {
			dst.markClosed()
			p.Teardown(websocket.CloseInternalServerErr, dst.name+" write failed")
			return
		}
	}
}

// closeCause maps a read error to the close code and reason used for
// teardown: 1000 for a clean close from the peer, 1011 for everything else.
func closeCause(src *leg, err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			reason := ce.Text
			if reason == "" {
				reason = src.name + " closed"
			}
			return websocket.CloseNormalClosure, reason
		}
	}
	return websocket.CloseInternalServerErr, src.name + " connection error"
}

func (p *Pair) keepaliveLoop() {
	ticker := time.NewTicker(p.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-p.closing:
			return
		case <-ticker.C:
			for _, l := range []*leg{p.client, p.upstream} {
				if !l.isOpen() {
					continue
				}
				if err := l.ping(); err != nil {
					// Swallowed: a dying leg is picked up by its
					// read loop, which triggers teardown.
					p.log.Debug().Err(err).Str("leg", l.name).Msg("keepalive ping failed")
				}
			}
		}
	}
}

// Teardown drives both legs to Closed. Safe to call any number of times
// from any goroutine; only the first caller performs the transition, so
// simultaneous close events from both legs collapse into one shutdown.
func (p *Pair) Teardown(code int, reason string) {
	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		return
	}
	p.state = StateClosing
	p.mu.Unlock()

	close(p.closing)
	p.log.Debug().Int("code", code).Str("reason", reason).Msg("tearing down pair")

	p.client.closeGraceful(code, reason)
	p.upstream.closeGraceful(code, reason)

	go p.finish()
}

// finish waits for both relay directions to drain, bounded by the grace
// period, then releases the transports and marks the pair Closed.
func (p *Pair) finish() {
	pumpsDone := make(chan struct{})
	go func() {
		p.pumps.Wait()
		close(pumpsDone)
	}()

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-pumpsDone:
	case <-timer.C:
		p.log.Debug().Msg("grace period expired, force-terminating")
	}

	p.client.terminate()
	p.upstream.terminate()

	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()

	if n := p.dropped.Load(); n > 0 {
		p.log.Debug().Int64("dropped_frames", n).Msg("frames dropped during teardown")
	}
	close(p.done)
	if p.onClosed != nil {
		p.onClosed(p)
	}
}

// Terminate shuts the pair down immediately, without waiting out the
// grace period. Used on process shutdown.
func (p *Pair) Terminate() {
	p.Teardown(websocket.CloseNormalClosure, "relay shutting down")
	p.client.terminate()
	p.upstream.terminate()
}
