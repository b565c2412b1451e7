package rpc_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
)

// wireRequest is a decoded {"method":"call","params":[api, method, args]} frame.
type wireRequest struct {
	ID     uint64
	APIID  int
	Method string
	Args   []json.RawMessage
}

// reply describes how the mock node answers one request.
type reply struct {
	Result any
	Error  *rpc.RemoteError
	Raw    string // sent verbatim when set, %d is replaced by the request id
	Delay  time.Duration
	Silent bool // never answer
	// DropAfter disconnects right after the answer is queued.
	DropAfter error
}

type responder func(req wireRequest) reply

// MockNode is an in-memory Transport that behaves like a Graphene node:
// login succeeds, namespaces resolve through apiIDs and other methods are
// answered by registered responders.
type MockNode struct {
	mu         sync.Mutex
	events     chan rpc.TransportEvent
	connected  bool
	dialURLs   []string
	dialErr    func(dial int) error
	requests   []wireRequest
	apiIDs     map[string]int
	responders map[string]responder
	login      bool
}

var _ rpc.Transport = (*MockNode)(nil)

func NewMockNode() *MockNode {
	return &MockNode{
		apiIDs:     map[string]int{"database": 2, "history": 3, "network_broadcast": 4},
		responders: make(map[string]responder),
		login:      true,
	}
}

// Handle registers a responder for a method of any non-login namespace.
func (n *MockNode) Handle(method string, r responder) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.responders[method] = r
}

func (n *MockNode) Dial(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.connected {
		return rpc.ErrAlreadyConnected
	}
	n.dialURLs = append(n.dialURLs, url)
	if n.dialErr != nil {
		if err := n.dialErr(len(n.dialURLs)); err != nil {
			return fmt.Errorf("%w: %w", rpc.ErrConnection, err)
		}
	}

	n.events = make(chan rpc.TransportEvent, 256)
	n.connected = true
	n.events <- rpc.TransportEvent{Kind: rpc.EventConnected}
	return nil
}

func (n *MockNode) Send(_ context.Context, data []byte) error {
	var req struct {
		ID     uint64            `json:"id"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	wr := wireRequest{ID: req.ID}
	if len(req.Params) == 3 {
		_ = json.Unmarshal(req.Params[0], &wr.APIID)
		_ = json.Unmarshal(req.Params[1], &wr.Method)
		_ = json.Unmarshal(req.Params[2], &wr.Args)
	}

	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return rpc.ErrNotConnected
	}
	n.requests = append(n.requests, wr)
	rep := n.answerLocked(wr)
	events := n.events
	n.mu.Unlock()

	if rep.Silent {
		return nil
	}
	frame := encodeReply(wr.ID, rep)
	if rep.Delay > 0 {
		go func() {
			time.Sleep(rep.Delay)
			n.pushTo(events, frame)
		}()
		return nil
	}
	n.pushTo(events, frame)
	if rep.DropAfter != nil {
		n.Drop(rep.DropAfter)
	}
	return nil
}

func (n *MockNode) answerLocked(req wireRequest) reply {
	if req.APIID == 1 {
		if req.Method == "login" {
			return reply{Result: n.login}
		}
		if r, ok := n.responders["login."+req.Method]; ok {
			return r(req)
		}
		if id, ok := n.apiIDs[req.Method]; ok {
			return reply{Result: id}
		}
		return reply{Raw: `{"id":%d,"jsonrpc":"2.0","result":null}`}
	}

	if r, ok := n.responders[req.Method]; ok {
		return r(req)
	}
	return reply{Error: &rpc.RemoteError{Code: 1, Message: "method not found: " + req.Method}}
}

func encodeReply(id uint64, rep reply) []byte {
	if rep.Raw != "" {
		return []byte(fmt.Sprintf(rep.Raw, id))
	}

	msg := map[string]any{"jsonrpc": "2.0", "id": id}
	if rep.Error != nil {
		msg["error"] = rep.Error
	} else {
		msg["result"] = rep.Result
	}
	data, _ := json.Marshal(msg)
	return data
}

func (n *MockNode) pushTo(events chan rpc.TransportEvent, frame []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.connected && n.events == events {
		n.events <- rpc.TransportEvent{Kind: rpc.EventMessage, Data: frame}
	}
}

// Push delivers an unsolicited frame.
func (n *MockNode) Push(frame string) {
	n.mu.Lock()
	events := n.events
	n.mu.Unlock()

	n.pushTo(events, []byte(frame))
}

// Drop simulates the node going away.
func (n *MockNode) Drop(reason error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disconnectLocked(reason)
}

func (n *MockNode) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disconnectLocked(nil)
	return nil
}

func (n *MockNode) disconnectLocked(reason error) {
	if !n.connected {
		return
	}
	n.connected = false
	n.events <- rpc.TransportEvent{Kind: rpc.EventDisconnected, Err: reason}
	close(n.events)
}

func (n *MockNode) Events() <-chan rpc.TransportEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.events
}

func (n *MockNode) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.connected
}

// Requests returns the frames received so far whose method is method.
func (n *MockNode) Requests(method string) []wireRequest {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []wireRequest
	for _, r := range n.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func (n *MockNode) Dials() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.dialURLs...)
}
