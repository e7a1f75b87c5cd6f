package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/firebase/rtdb-go/pkg/auth"
	"github.com/firebase/rtdb-go/pkg/log"
	"github.com/firebase/rtdb-go/pkg/metrics"
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

// Delegate receives events the Connection cannot act on itself: server
// pushes belong to the sync tree, auth revocation belongs to whatever
// owns the write queue and listener set. Every method is invoked on the
// run-loop goroutine.
type Delegate interface {
	OnConnected()
	OnDisconnected(willReconnect bool)
	OnAuthRevoked(err error)
	OnDataUpdate(path model.Path, data interface{}, tag uint64)
	OnDataMerge(path model.Path, data interface{}, tag uint64)
	OnRangeMerge(path model.Path, startKey, endKey string, data interface{}, tag uint64)
}

// Config parameterizes a Connection.
type Config struct {
	Namespace      string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	IdleTimeout    time.Duration // spec default: 60s with nothing outstanding
}

func (c Config) withDefaults() Config {
	if c.DialTimeout == 0 {
		c.DialTimeout = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

type pendingRequest struct {
	done  chan response
	timer *time.Timer
}

// Connection is the persistent connection described in spec §4.1. All
// exported methods must be called from the run-loop goroutine; the
// reader/writer goroutines only move bytes and post tasks back to the
// run loop.
type Connection struct {
	cfg      Config
	rl       *runloop.RunLoop
	tp       auth.TokenProvider
	delegate Delegate
	logger   zerolog.Logger

	httpClient httpDoer

	mu    sync.Mutex
	state State
	ws    *websocket.Conn

	nextReqID uint64
	pending   map[uint64]*pendingRequest

	writeCh chan []byte
	closeCh chan struct{}
	connSeq uint64 // bumped on every (re)connect to stale-check async goroutines

	backoff        *Backoff
	reconnectTimer func()
	idleTimer      func()
	connectedAt    time.Time

	listens   map[string]listenRegistration // keyed by (path, params) wire identity, registration order preserved via seq
	listenSeq uint64
	nextTag   uint64

	writes []outstandingWrite // in write-id order, for replay on reconnect

	autoReconnect    bool // false while INTERRUPTED via GoOffline
	hasConnectedOnce bool // set by the first explicit Connect call
}

type listenRegistration struct {
	seq  uint64
	spec model.QuerySpec
	tag  uint64
	hash string
}

type outstandingWrite struct {
	writeID int64
	isMerge bool
	path    model.Path
	data    interface{}
	hash    string
	cb      WriteCallback
}

// NewConnection constructs a Connection bound to a single run loop. Dial
// does not happen until Connect is called.
func NewConnection(cfg Config, rl *runloop.RunLoop, tp auth.TokenProvider, delegate Delegate) *Connection {
	return &Connection{
		cfg:           cfg.withDefaults(),
		rl:            rl,
		tp:            tp,
		delegate:      delegate,
		logger:        log.WithComponent("conn"),
		httpClient:    defaultHTTPClient,
		state:         StateDisconnected,
		pending:       make(map[uint64]*pendingRequest),
		backoff:       DefaultBackoff(),
		listens:       make(map[string]listenRegistration),
		autoReconnect: true,
	}
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(next State) {
	c.mu.Lock()
	cur := c.state
	c.state = next
	c.mu.Unlock()
	metrics.ConnectionState.Set(float64(next))
	c.logger.Debug().Str("from", cur.String()).Str("to", next.String()).Msg("connection state transition")
}

// Connect begins (or resumes) the connect sequence: GATHERING_HOST ->
// CONNECTING -> AUTHENTICATING -> CONNECTED. It is idempotent while
// already connecting or connected.
func (c *Connection) Connect(ctx context.Context) {
	if s := c.State(); s == StateConnecting || s == StateAuthenticating || s == StateConnected || s == StateGatheringHost {
		return
	}
	c.autoReconnect = true
	c.hasConnectedOnce = true
	c.connSeq++
	seq := c.connSeq
	c.setState(StateGatheringHost)
	go c.dial(ctx, seq)
}

// dial runs on its own goroutine: host resolution and the websocket
// handshake both block, and must never stall the run loop.
func (c *Connection) dial(ctx context.Context, seq uint64) {
	timer := metrics.NewTimer()
	res, err := resolveHost(c.httpClient, c.cfg.Namespace)
	if err != nil {
		c.rl.Post(func() { c.onDialFailed(seq, err) })
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	connID := uuid.NewString()
	url := fmt.Sprintf("%s://%s/.ws?ns=%s&v=5&cid=%s", res.Scheme, res.Host, c.cfg.Namespace, connID)
	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		c.rl.Post(func() { c.onDialFailed(seq, err) })
		return
	}

	c.rl.Post(func() {
		if seq != c.connSeq {
			ws.Close()
			return
		}
		c.logger = c.logger.With().Str("conn_id", connID).Logger()
		c.setState(StateConnecting)
		c.ws = ws
		c.writeCh = make(chan []byte, 64)
		c.closeCh = make(chan struct{})
		go c.writeLoop(ws, c.writeCh, c.closeCh, seq)
		go c.readLoop(ws, c.closeCh, seq)
	})
	metrics.ConnectDuration.Observe(timer.Duration().Seconds())
}

func (c *Connection) onDialFailed(seq uint64, err error) {
	if seq != c.connSeq {
		return
	}
	c.logger.Error().Err(err).Msg("connect failed")
	c.setState(StateDisconnected)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer, unless the caller disabled
// auto-reconnect via GoOffline or a server_kill shutdown.
func (c *Connection) scheduleReconnect() {
	if !c.autoReconnect {
		return
	}
	metrics.ReconnectsTotal.Inc()
	delay := c.backoff.Next()
	cancel := c.rl.PostDelayed(delay, func() {
		c.reconnectTimer = nil
		c.Connect(context.Background())
	})
	c.reconnectTimer = cancel
}

// handshakeReceived is invoked by readLoop (via the run loop) once the
// control "h" frame arrives: the socket is now AUTHENTICATING.
func (c *Connection) handshakeReceived(seq uint64, h handshakeData) {
	if seq != c.connSeq || c.State() != StateConnecting {
		return
	}
	c.setState(StateAuthenticating)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()
	token, err := c.tp.Token(ctx)
	if err != nil {
		c.failAuthentication(seq, model.WrapError(model.ErrAuthFailure, "token provider failed", err))
		return
	}
	if token == "" {
		c.authenticated(seq)
		return
	}
	c.sendRequest(ActionAuth, token, func(resp response, err error) {
		if err != nil || resp.B.S != StatusOK {
			c.failAuthentication(seq, model.NewError(model.ErrAuthFailure, "auth token rejected"))
			return
		}
		c.authenticated(seq)
	})
}

func (c *Connection) failAuthentication(seq uint64, err error) {
	if seq != c.connSeq {
		return
	}
	// auth_revoked is not retriable: propagate and stay disconnected until
	// the caller supplies a new credential and reconnects explicitly.
	retriable := model.KindOf(err) != model.ErrPermissionDenied
	c.setState(StateDisconnected)
	c.delegate.OnAuthRevoked(err)
	if retriable {
		c.scheduleReconnect()
	}
}

func (c *Connection) authenticated(seq uint64) {
	if seq != c.connSeq {
		return
	}
	c.setState(StateConnected)
	c.connectedAt = time.Now()
	c.replayAfterConnect()
	c.armIdleTimer()
	c.delegate.OnConnected()

	c.rl.PostDelayed(c.backoff.HealthyWindow, func() {
		if c.connSeq == seq && c.State() == StateConnected {
			c.backoff.Reset()
		}
	})
}

// replayAfterConnect re-sends every registered listen (in registration
// order), every outstanding write (in write-id order), per spec §4.1.
func (c *Connection) replayAfterConnect() {
	ordered := make([]listenRegistration, 0, len(c.listens))
	for _, r := range c.listens {
		ordered = append(ordered, r)
	}
	sortListenRegistrations(ordered)
	for _, r := range ordered {
		c.sendListen(r)
	}
	for _, w := range c.writes {
		c.sendWrite(w)
	}
}

func sortListenRegistrations(regs []listenRegistration) {
	for i := 1; i < len(regs); i++ {
		for j := i; j > 0 && regs[j].seq < regs[j-1].seq; j-- {
			regs[j], regs[j-1] = regs[j-1], regs[j]
		}
	}
}

// --- idle shutdown ---

func (c *Connection) armIdleTimer() {
	c.idleTimer = c.rl.PostDelayed(c.cfg.IdleTimeout, c.checkIdle)
}

// checkIdle implements spec §4.1's idle shutdown: with nothing
// outstanding for IdleTimeout, the socket closes; any subsequent
// Listen/Put/Get transparently reopens it via Connect.
func (c *Connection) checkIdle() {
	if len(c.listens) == 0 && len(c.writes) == 0 && len(c.pending) == 0 {
		c.closeSocket(false)
		c.setState(StateDisconnected)
		return
	}
	c.armIdleTimer()
}

func (c *Connection) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer()
	}
	c.armIdleTimer()
}

// ensureConnected transparently reopens a socket that idle-shutdown (or
// an earlier failure) closed, per spec §4.1: "any subsequent op
// transparently reopens" it. It never overrides an explicit GoOffline.
func (c *Connection) ensureConnected() {
	if c.hasConnectedOnce && c.State() == StateDisconnected && c.autoReconnect {
		c.Connect(context.Background())
	}
}

// --- GoOffline / GoOnline ---

// GoOffline moves to INTERRUPTED: a caller-initiated disconnect distinct
// from an involuntary one. No automatic reconnect occurs until GoOnline.
func (c *Connection) GoOffline() {
	c.autoReconnect = false
	if c.reconnectTimer != nil {
		c.reconnectTimer()
		c.reconnectTimer = nil
	}
	c.setState(StateInterrupted)
	c.closeSocket(false)
}

// GoOnline leaves INTERRUPTED and resumes the connect sequence.
func (c *Connection) GoOnline() {
	if c.State() != StateInterrupted {
		return
	}
	c.Connect(context.Background())
}

// Close tears the connection down permanently; no further reconnects.
func (c *Connection) Close() {
	c.autoReconnect = false
	c.connSeq++
	c.closeSocket(false)
	c.setState(StateDisconnected)
}

func (c *Connection) closeSocket(willReconnect bool) {
	if c.closeCh != nil {
		close(c.closeCh)
		c.closeCh = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	for _, p := range c.pending {
		p.timer.Stop()
		close(p.done)
	}
	c.pending = make(map[uint64]*pendingRequest)
	if c.state == StateConnected || c.state == StateAuthenticating {
		c.delegate.OnDisconnected(willReconnect)
	}
}

// onSocketBroken is posted by readLoop/writeLoop when the socket dies
// unexpectedly (not via Close/GoOffline).
func (c *Connection) onSocketBroken(seq uint64, err error) {
	if seq != c.connSeq {
		return
	}
	c.logger.Error().Err(err).Msg("connection lost")
	c.closeSocket(c.autoReconnect)
	c.setState(StateDisconnected)
	c.scheduleReconnect()
}

// --- outbound requests ---

func (c *Connection) sendRequest(action string, body interface{}, cb func(response, error)) uint64 {
	c.nextReqID++
	id := c.nextReqID
	req := request{R: id, A: action, B: body}
	raw, err := json.Marshal(envelope{T: frameData, D: marshalNoErr(req)})
	if err != nil {
		if cb != nil {
			cb(response{}, err)
		}
		return id
	}

	done := make(chan response, 1)
	timer := time.AfterFunc(c.cfg.RequestTimeout, func() {
		seq := c.connSeq
		c.rl.Post(func() { c.onRequestTimeout(seq, id) })
	})
	c.pending[id] = &pendingRequest{done: done, timer: timer}

	if cb != nil {
		go func() {
			resp, ok := <-done
			if !ok {
				c.rl.Post(func() { cb(response{}, model.NewError(model.ErrDisconnected, "connection closed before response")) })
				return
			}
			c.rl.Post(func() { cb(resp, nil) })
		}()
	}

	for _, frame := range splitFrame(raw) {
		c.enqueueWrite([]byte(frame))
	}
	c.resetIdleTimer()
	return id
}

func (c *Connection) onRequestTimeout(seq, id uint64) {
	if seq != c.connSeq {
		return
	}
	if p, ok := c.pending[id]; ok {
		delete(c.pending, id)
		close(p.done)
		// Per spec §4.1: a timed-out request with no response closes the
		// connection; the request is considered unacknowledged (it will
		// replay if it was a listen/write, on the next connect).
		c.onSocketBroken(seq, fmt.Errorf("conn: request %d timed out", id))
	}
}

func (c *Connection) enqueueWrite(b []byte) {
	if c.writeCh == nil {
		return
	}
	select {
	case c.writeCh <- b:
	default:
		// Writer is behind; block briefly rather than drop a frame, since
		// correctness depends on every listen/write reaching the wire.
		c.writeCh <- b
	}
}

func marshalNoErr(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// --- socket goroutines ---

func (c *Connection) writeLoop(ws *websocket.Conn, in <-chan []byte, stop <-chan struct{}, seq uint64) {
	for {
		select {
		case b, ok := <-in:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.rl.Post(func() { c.onSocketBroken(seq, err) })
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Connection) readLoop(ws *websocket.Conn, stop <-chan struct{}, seq uint64) {
	asm := &frameAssembler{}
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				c.rl.Post(func() { c.onSocketBroken(seq, err) })
			}
			return
		}
		full, complete, err := asm.Feed(string(raw))
		if err != nil {
			c.rl.Post(func() { c.onSocketBroken(seq, fmt.Errorf("conn: %w", err)) })
			return
		}
		if !complete {
			continue
		}
		frame := full
		c.rl.Post(func() { c.handleFrame(seq, frame) })
	}
}

func (c *Connection) handleFrame(seq uint64, raw []byte) {
	if seq != c.connSeq {
		return
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.onSocketBroken(seq, fmt.Errorf("conn: malformed frame: %w", err))
		return
	}
	switch env.T {
	case frameControl:
		c.handleControl(seq, env.D)
	case frameData:
		c.handleData(seq, env.D)
	}
}

func (c *Connection) handleControl(seq uint64, raw json.RawMessage) {
	var ctl control
	if err := json.Unmarshal(raw, &ctl); err != nil {
		c.onSocketBroken(seq, fmt.Errorf("conn: malformed control frame: %w", err))
		return
	}
	switch ctl.T {
	case ControlHandshake:
		var h handshakeData
		json.Unmarshal(ctl.D, &h)
		c.handshakeReceived(seq, h)
	case ControlReset:
		var r resetData
		json.Unmarshal(ctl.D, &r)
		c.logger.Info().Str("host", r.Host).Msg("server requested reset")
		c.onSocketBroken(seq, fmt.Errorf("conn: server reset to %s", r.Host))
	case ControlShutdown:
		c.autoReconnect = false
		c.closeSocket(false)
		c.setState(StateDisconnected)
		c.delegate.OnAuthRevoked(model.NewError(model.ErrServerKill, "server closed the connection"))
	case ControlPing:
		c.enqueueWrite([]byte(`{"t":"c","d":{"t":"o"}}`))
	}
}

func (c *Connection) handleData(seq uint64, raw json.RawMessage) {
	// A data frame is either a response to our request (has "r") or a
	// server-initiated push (has "a").
	var probe struct {
		R *uint64 `json:"r"`
	}
	json.Unmarshal(raw, &probe)
	if probe.R != nil {
		var resp response
		json.Unmarshal(raw, &resp)
		if p, ok := c.pending[resp.R]; ok {
			delete(c.pending, resp.R)
			p.timer.Stop()
			p.done <- resp
			close(p.done)
		}
		return
	}

	var ps push
	if err := json.Unmarshal(raw, &ps); err != nil {
		c.onSocketBroken(seq, fmt.Errorf("conn: malformed push frame: %w", err))
		return
	}
	path, err := model.NewPath(ps.B.P)
	if err != nil {
		c.onSocketBroken(seq, fmt.Errorf("conn: malformed push path: %w", err))
		return
	}
	switch ps.A {
	case PushData:
		c.delegate.OnDataUpdate(path, ps.B.D, ps.B.T)
	case PushMerge:
		c.delegate.OnDataMerge(path, ps.B.D, ps.B.T)
	case PushRangeMerge:
		c.delegate.OnRangeMerge(path, ps.B.S, ps.B.E, ps.B.M, ps.B.T)
	case PushAuthRevoke, PushAuthPerm:
		c.delegate.OnAuthRevoked(model.NewError(model.ErrPermissionDenied, "auth token revoked"))
	case PushSecDebug:
		c.logger.Debug().Str("path", path.String()).Msg("security debug push")
	}
}
