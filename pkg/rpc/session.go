package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const subscriptionNamespace = "database"

var errTransportClosed = errors.New("transport disconnected")

// Option configures a Session.
type Option func(*Session)

// WithTransport replaces the default websocket transport.
func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

func WithLogger(lg log.Logger) Option {
	return func(s *Session) { s.lg = lg }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Session) { s.tracer = tr }
}

// WithBackOff replaces the reconnect policy derived from Config.Reconnect.
// newBackOff is called once per Connect.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Session) { s.newBackOff = newBackOff }
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    time.Duration
	hasTimeout bool
}

// WithTimeout overrides Config.CallTimeout for one call. Zero disables it.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// connection is one successful Dial and everything learned on it.
type connection struct {
	transport  Transport
	events     <-chan TransportEvent
	endpoint   string
	generation uint64
	closed     chan struct{}
	reason     error // set by dispatch before closed is closed
}

// Session multiplexes calls to the api namespaces of a Graphene node over one
// connection, reconnecting according to Config.Reconnect. A Session is safe for
// concurrent use.
//
//	s, err := rpc.NewSession(cfg, rpc.WithLogger(lg))
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	defer s.Close()
//	raw, err := s.Call(ctx, "database", "get_chain_id", nil)
type Session struct {
	id         string
	cfg        Config
	transport  Transport
	lg         log.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
	limiter    *rate.Limiter

	registry *Registry
	router   *Router
	fanout   *Fanout

	mu         sync.Mutex
	state      State
	conn       *connection
	generation uint64
	ready      chan struct{} // closed while Ready
	failed     chan struct{} // closed once the session gave up
	failErr    error
	cancel     context.CancelFunc
	done       chan struct{} // closed when the supervisor exits, nil when none runs

	cbMu  sync.Mutex
	cbGen uint64 // generation on which set_subscribe_callback was installed
}

// NewSession validates cfg and builds an unconnected Session.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		lg:       log.NewNoopLogger(),
		tracer:   otel.Tracer("github.com/kalutskii/etil-sterahstib/pkg/rpc"),
		registry: NewRegistry(),
		ready:    make(chan struct{}),
		failed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		s.transport = NewWebsocketTransport(cfg.Transport)
	}
	if s.metrics == nil {
		s.metrics = NewMetricsWithRegistry(nil)
	}
	if s.newBackOff == nil {
		s.newBackOff = cfg.Reconnect.BackOff
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.lg = s.lg.WithName("rpc-session").WithKV("session", s.id)
	s.router = NewRouter(s.lookupNamespace, cfg.ResolveTimeout)
	s.fanout = NewFanout(s.registry.NextID(), cfg.NotificationBuffer, s.lg.WithName("fanout"), s.metrics)

	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Router exposes the namespace cache, mostly for diagnostics.
func (s *Session) Router() *Router { return s.router }

// NoticeCallbackID is the callback number this session passes to
// set_subscribe_callback; notices carry it as their first parameter.
func (s *Session) NoticeCallbackID() uint64 { return s.fanout.CallbackID() }

// Pending returns the number of requests awaiting a response.
func (s *Session) Pending() int { return s.registry.Len() }

// Connect starts the connection supervisor and waits until the session is
// Ready, gives up, or ctx is done. The supervisor outlives ctx; only Close
// stops it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}

	runCtx, cancel := context.WithCancel(log.SetContextLogger(context.Background(), s.lg))
	s.cancel = cancel
	s.done = make(chan struct{})
	select {
	case <-s.failed:
		s.failed = make(chan struct{})
		s.failErr = nil
	default:
	}
	ready, failed, done := s.ready, s.failed, s.done
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	go s.supervise(runCtx, failed, done)

	select {
	case <-ready:
		return nil
	case <-failed:
		return s.failure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops reconnecting, drops the connection, removes every subscription
// and fails every pending or queued call with ErrConnectionLost. The session
// may be connected again.
func (s *Session) Close() error {
	defer s.fanout.Close()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	if done == nil {
		select {
		case <-s.failed:
		default:
			s.failErr = ErrSessionClosed
			close(s.failed)
		}
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateClosing)
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Call invokes method on namespace with params and returns the raw result.
//
// If the session is not Ready the call waits for it, unless
// Config.QueueWhileDisconnected is false. Errors are *RemoteError when the
// node answered with an error object, *TimeoutError when the deadline passed,
// *ConnectionLostError when the connection failed underneath the call, or the
// context error when ctx was cancelled.
func (s *Session) Call(ctx context.Context, namespace, method string, params []any, opts ...CallOption) (json.RawMessage, error) {
	ctx, cancel := s.withCallTimeout(ctx, opts)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, namespace+"."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.service", namespace),
			attribute.String("rpc.method", method),
			attribute.String("session.id", s.id),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := s.call(ctx, namespace, method, params, start)
	s.metrics.observeCall(namespace, method, outcomeLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// Subscribe performs a call that enables live updates, such as get_objects
// with subscribe set, and registers listener for every object id found in the
// result. The call is replayed after each reconnect to renew the node-side
// subscription and the id set.
func (s *Session) Subscribe(ctx context.Context, namespace, method string, params []any, listener Listener, opts ...CallOption) (*Subscription, json.RawMessage, error) {
	ctx, cancel := s.withCallTimeout(ctx, opts)
	defer cancel()

	// Registered before the call: a reconnect from here on replays it and
	// reinstalls the notice callback. Nothing matches until the ids are known.
	sub := s.fanout.subscribe(Filter{learned: true}, listener, &origin{
		namespace: namespace,
		method:    method,
		params:    params,
	})

	if err := s.ensureNoticeCallback(ctx); err != nil {
		s.fanout.Unsubscribe(sub)
		return nil, nil, err
	}

	raw, err := s.Call(ctx, namespace, method, params)
	if err != nil {
		s.fanout.Unsubscribe(sub)
		return nil, nil, err
	}

	s.fanout.setFilter(sub, learnedFilter(raw))
	return sub, raw, nil
}

// Listen registers listener for notices matching filter without issuing a
// call. The node only pushes objects some earlier call subscribed to.
func (s *Session) Listen(filter Filter, listener Listener) *Subscription {
	return s.fanout.Subscribe(filter, listener)
}

func (s *Session) Unsubscribe(sub *Subscription) {
	s.fanout.Unsubscribe(sub)
}

func (s *Session) call(ctx context.Context, namespace, method string, params []any, start time.Time) (json.RawMessage, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, s.contextError(ctx, 0, namespace, method, start)
		}
	}

	conn, err := s.awaitReady(ctx, namespace, method, start)
	if err != nil {
		return nil, err
	}

	apiID, err := s.router.Resolve(ctx, namespace)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.contextError(ctx, 0, namespace, method, start)
		}
		return nil, err
	}

	return s.roundTrip(ctx, conn, apiID, namespace, method, params)
}

func (s *Session) awaitReady(ctx context.Context, namespace, method string, start time.Time) (*connection, error) {
	for {
		s.mu.Lock()
		if s.state == StateReady && s.conn != nil {
			conn := s.conn
			s.mu.Unlock()
			return conn, nil
		}
		if !s.cfg.QueueWhileDisconnected {
			state := s.state
			s.mu.Unlock()
			return nil, &ConnectionLostError{
				Namespace: namespace,
				Method:    method,
				Cause:     fmt.Errorf("%w: session is %s", ErrNotConnected, state),
			}
		}
		ready, failed := s.ready, s.failed
		s.mu.Unlock()

		select {
		case <-ready:
		case <-failed:
			return nil, &ConnectionLostError{Namespace: namespace, Method: method, Cause: s.failure()}
		case <-ctx.Done():
			return nil, s.contextError(ctx, 0, namespace, method, start)
		}
	}
}

// roundTrip sends one request on conn and waits for its outcome.
func (s *Session) roundTrip(ctx context.Context, conn *connection, apiID int, namespace, method string, params []any) (json.RawMessage, error) {
	id := s.registry.NextID()
	w, err := s.registry.Register(id, namespace, method)
	if err != nil {
		return nil, err
	}
	s.metrics.PendingRequests.Inc()
	defer s.metrics.PendingRequests.Dec()

	data, err := json.Marshal(NewCallRequest(id, apiID, method, params))
	if err != nil {
		s.registry.Remove(id)
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	if gen := s.currentGeneration(); gen != conn.generation {
		s.registry.Reject(id, &ConnectionLostError{RequestID: id, Namespace: namespace, Method: method, Cause: errTransportClosed})
	} else if err := conn.transport.Send(ctx, data); err != nil {
		s.registry.Reject(id, &ConnectionLostError{RequestID: id, Namespace: namespace, Method: method, Cause: err})
	}

	select {
	case out := <-w.Done():
		return out.Result, out.Err
	case <-ctx.Done():
		s.registry.Remove(id)
		return nil, s.contextError(ctx, id, namespace, method, w.CreatedAt)
	}
}

// supervise runs connections until the session is closed or gives up.
func (s *Session) supervise(ctx context.Context, failed, done chan struct{}) {
	defer close(done)

	bo := s.newBackOff()
	bo.Reset()

	for attempt := 0; ; attempt++ {
		endpoint := s.cfg.Endpoints[attempt%len(s.cfg.Endpoints)]
		if attempt > 0 {
			s.metrics.Reconnects.Inc()
			s.setState(StateConnecting)
		}

		wasReady, err := s.runConnection(ctx, endpoint)
		if ctx.Err() != nil {
			s.terminate(failed, ErrSessionClosed)
			return
		}
		if errors.Is(err, ErrAuthentication) {
			s.lg.Error("authentication failed, not retrying", "endpoint", endpoint, "error", err)
			s.terminate(failed, err)
			return
		}
		if wasReady {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			s.lg.Error("giving up on connection", "endpoint", endpoint, "attempts", attempt+1, "error", err)
			s.terminate(failed, fmt.Errorf("%w: retries exhausted: %w", ErrConnection, err))
			return
		}

		s.lg.Warn("connection failed, retrying", "endpoint", endpoint, "attempt", attempt+1, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.terminate(failed, ErrSessionClosed)
			return
		case <-timer.C:
		}
	}
}

// runConnection dials endpoint, performs the handshake and serves the
// connection until it ends. It reports whether the connection reached Ready.
func (s *Session) runConnection(ctx context.Context, endpoint string) (bool, error) {
	lg := s.lg.WithKV("endpoint", endpoint)

	s.router.Invalidate()
	if err := s.transport.Dial(ctx, endpoint); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.generation++
	conn := &connection{
		transport:  s.transport,
		events:     s.transport.Events(),
		endpoint:   endpoint,
		generation: s.generation,
		closed:     make(chan struct{}),
	}
	s.conn = conn
	s.setStateLocked(StateAuthenticating)
	s.mu.Unlock()

	go s.dispatch(conn)

	hctx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.HandshakeTimeout > 0 {
		hctx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	}
	err := s.authenticate(hctx, conn)
	cancel()
	if err != nil {
		_ = s.transport.Close()
		<-conn.closed
		s.connectionDown(conn, err)
		return false, err
	}

	s.mu.Lock()
	select {
	case <-conn.closed:
	default:
		s.setStateLocked(StateReady)
		close(s.ready)
	}
	s.mu.Unlock()
	lg.Info("session ready", "generation", conn.generation)

	select {
	case <-conn.closed:
	case <-ctx.Done():
		s.setState(StateClosing)
		_ = s.transport.Close()
		<-conn.closed
	}

	reason := conn.reason
	if ctx.Err() != nil {
		reason = ErrSessionClosed
	}
	s.connectionDown(conn, reason)
	lg.Warn("connection lost", "reason", reason)
	return true, reason
}

// authenticate logs in, resolves the eager namespaces and restores
// subscriptions. Only a refusal by the node is an authentication failure;
// losing the connection midway is retried like any other drop.
func (s *Session) authenticate(ctx context.Context, conn *connection) error {
	raw, err := s.roundTrip(ctx, conn, loginAPIID, LoginNamespace, "login", []any{s.cfg.Username, s.cfg.Password})
	if err != nil {
		return handshakeError("login", err)
	}

	var accepted bool
	if err := json.Unmarshal(raw, &accepted); err != nil || !accepted {
		return fmt.Errorf("%w: login rejected for user %q", ErrAuthentication, s.cfg.Username)
	}

	for _, ns := range s.cfg.Namespaces {
		if _, err := s.router.Resolve(ctx, ns); err != nil {
			return handshakeError(ns, err)
		}
	}

	if subs := s.fanout.replayable(); len(subs) > 0 {
		s.resubscribe(ctx, conn, subs)
	}
	return nil
}

func handshakeError(step string, err error) error {
	if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("handshake %s: %w", step, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrAuthentication, step, err)
}

func (s *Session) resubscribe(ctx context.Context, conn *connection, subs []*Subscription) {
	s.cbMu.Lock()
	err := s.installNoticeCallback(ctx, conn)
	s.cbMu.Unlock()
	if err != nil {
		s.lg.Warn("could not restore notice callback", "error", err)
		return
	}

	for _, sub := range subs {
		apiID, err := s.router.Resolve(ctx, sub.origin.namespace)
		if err != nil {
			s.lg.Warn("could not restore subscription", "subscription", sub.id, "error", err)
			continue
		}
		raw, err := s.roundTrip(ctx, conn, apiID, sub.origin.namespace, sub.origin.method, sub.origin.params)
		if err != nil {
			s.lg.Warn("could not restore subscription", "subscription", sub.id, "error", err)
			continue
		}
		s.fanout.setFilter(sub, learnedFilter(raw))
	}
	s.lg.Info("subscriptions restored", "count", len(subs))
}

func (s *Session) ensureNoticeCallback(ctx context.Context) error {
	conn, err := s.awaitReady(ctx, subscriptionNamespace, "set_subscribe_callback", time.Now())
	if err != nil {
		return err
	}

	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	if s.cbGen == conn.generation {
		return nil
	}
	return s.installNoticeCallback(ctx, conn)
}

// installNoticeCallback must be called with cbMu held.
func (s *Session) installNoticeCallback(ctx context.Context, conn *connection) error {
	apiID, err := s.router.Resolve(ctx, subscriptionNamespace)
	if err != nil {
		return err
	}
	params := []any{s.fanout.CallbackID(), false}
	if _, err := s.roundTrip(ctx, conn, apiID, subscriptionNamespace, "set_subscribe_callback", params); err != nil {
		return err
	}
	s.cbGen = conn.generation
	return nil
}

// lookupNamespace backs the Router: calling login.<name> returns the api id,
// or null when the node does not expose or permit the namespace.
func (s *Session) lookupNamespace(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, &ConnectionLostError{Namespace: LoginNamespace, Method: name, Cause: ErrNotConnected}
	}

	s.metrics.NamespaceLookups.WithLabelValues(name).Inc()
	raw, err := s.roundTrip(ctx, conn, loginAPIID, LoginNamespace, name, nil)
	if err != nil {
		return 0, err
	}

	var id *int
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("%w: api id for %s: %w", ErrProtocolViolation, name, err)
	}
	if id == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
	}

	s.lg.Debug("namespace resolved", "namespace", name, "apiId", *id)
	return *id, nil
}

// dispatch is the only reader of conn's events, so inbound messages are
// handled one at a time.
func (s *Session) dispatch(conn *connection) {
	defer close(conn.closed)

	for ev := range conn.events {
		switch ev.Kind {
		case EventConnected:
			s.lg.Debug("transport connected", "endpoint", conn.endpoint)
		case EventMessage:
			s.handleMessage(ev.Data)
		case EventError:
			s.lg.Warn("transport error", "endpoint", conn.endpoint, "error", ev.Err)
			if conn.reason == nil {
				conn.reason = ev.Err
			}
		case EventDisconnected:
			if ev.Err != nil {
				conn.reason = ev.Err
			}
			if conn.reason == nil {
				conn.reason = errTransportClosed
			}
			return
		}
	}
	if conn.reason == nil {
		conn.reason = errTransportClosed
	}
}

func (s *Session) handleMessage(data []byte) {
	env, err := parseEnvelope(data)
	if err != nil {
		s.protocolViolation("undecodable envelope", data, err)
		return
	}

	id, ok := env.requestID()
	if !ok || !s.registry.Has(id) {
		_ = s.fanout.deliver(env)
		return
	}

	switch {
	case env.hasError() && env.hasResult() && !env.nullResult():
		s.registry.Reject(id, s.protocolViolation("response carries both result and error", data, nil))
	case env.hasError():
		rerr, err := env.remoteError()
		if err != nil {
			s.registry.Reject(id, s.protocolViolation("malformed error object", data, err))
			return
		}
		s.registry.Reject(id, rerr)
	case env.hasResult():
		s.registry.Resolve(id, env.Result)
	default:
		s.registry.Reject(id, s.protocolViolation("response carries neither result nor error", data, nil))
	}
}

func (s *Session) protocolViolation(msg string, data []byte, cause error) error {
	s.metrics.ProtocolViolations.Inc()

	const maxLogged = 512
	if len(data) > maxLogged {
		data = data[:maxLogged]
	}
	s.lg.Warn("protocol violation", "reason", msg, "message", string(data), "error", cause)

	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrProtocolViolation, msg, cause)
	}
	return fmt.Errorf("%w: %s", ErrProtocolViolation, msg)
}

// connectionDown leaves Ready, forgets every binding and fails every pending
// request of the dropped connection.
func (s *Session) connectionDown(conn *connection, reason error) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
	if s.state != StateClosing {
		s.setStateLocked(StateDisconnected)
	}
	s.mu.Unlock()

	s.router.Invalidate()
	if n := s.registry.FailAll(reason); n > 0 {
		s.metrics.ConnectionLost.Add(float64(n))
		s.lg.Warn("failed pending requests", "count", n, "reason", reason)
	}
}

// terminate marks the session as given up; queued calls observe failed.
func (s *Session) terminate(failed chan struct{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failErr = err
	s.done = nil
	s.cancel = nil
	s.setStateLocked(StateDisconnected)
	close(failed)
}

func (s *Session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr == nil {
		return ErrSessionClosed
	}
	return s.failErr
}

func (s *Session) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0
	}
	return s.conn.generation
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setStateLocked(state)
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.lg.Debug("session state changed", "from", s.state, "to", state)
	s.state = state
	s.metrics.State.Set(float64(state))
}

func (s *Session) withCallTimeout(ctx context.Context, opts []CallOption) (context.Context, context.CancelFunc) {
	o := callOptions{timeout: s.cfg.CallTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// contextError turns an expired or cancelled ctx into the error the caller sees.
func (s *Session) contextError(ctx context.Context, id uint64, namespace, method string, since time.Time) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return &TimeoutError{
		RequestID: id,
		Namespace: namespace,
		Method:    method,
		Elapsed:   time.Since(since),
	}
}

func outcomeLabel(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
