package bitshares_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
	"github.com/kalutskii/etil-sterahstib/pkg/log"
	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
)

type recordedCall struct {
	Namespace string
	Method    string
	Params    string
}

type handler func(params []any) (string, error)

// MockCaller answers calls from registered handlers keyed by
// "namespace.method" and records every call with its JSON-encoded params.
type MockCaller struct {
	mu       sync.Mutex
	calls    []recordedCall
	handlers map[string]handler
	fanout   *rpc.Fanout
}

var _ bitshares.Subscriber = (*MockCaller)(nil)

func NewMockCaller() *MockCaller {
	return &MockCaller{
		handlers: make(map[string]handler),
		fanout:   rpc.NewFanout(1, 8, log.NewNoopLogger(), rpc.NewMetricsWithRegistry(nil)),
	}
}

// Reply registers a fixed JSON result.
func (m *MockCaller) Reply(namespace, method, result string) {
	m.Handle(namespace, method, func([]any) (string, error) { return result, nil })
}

func (m *MockCaller) Handle(namespace, method string, h handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[namespace+"."+method] = h
}

func (m *MockCaller) Call(_ context.Context, namespace, method string, params []any, _ ...rpc.CallOption) (json.RawMessage, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rpc.ErrMarshalingRequest, err)
	}

	m.mu.Lock()
	m.calls = append(m.calls, recordedCall{Namespace: namespace, Method: method, Params: string(encoded)})
	h := m.handlers[namespace+"."+method]
	m.mu.Unlock()

	if h == nil {
		return nil, &rpc.RemoteError{Code: 1, Message: "method not found: " + namespace + "." + method}
	}
	result, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(result), nil
}

func (m *MockCaller) Subscribe(ctx context.Context, namespace, method string, params []any, listener rpc.Listener, opts ...rpc.CallOption) (*rpc.Subscription, json.RawMessage, error) {
	raw, err := m.Call(ctx, namespace, method, params, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m.fanout.Subscribe(rpc.NewFilter(), listener), raw, nil
}

// Notify pushes a notice for callback 1 to every subscription.
func (m *MockCaller) Notify(t *testing.T, objects string) {
	t.Helper()

	require.NoError(t, m.fanout.Deliver([]byte(`{"method":"notice","params":[1,[`+objects+`]]}`)))
}

// Calls returns the recorded calls of one method.
func (m *MockCaller) Calls(method string) []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []recordedCall
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// callerOnly hides Subscribe.
type callerOnly struct {
	c *MockCaller
}

func (c callerOnly) Call(ctx context.Context, namespace, method string, params []any, opts ...rpc.CallOption) (json.RawMessage, error) {
	return c.c.Call(ctx, namespace, method, params, opts...)
}
