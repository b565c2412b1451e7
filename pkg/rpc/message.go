package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	jsonRPCVersion = "2.0"

	// callMethod is the only JSON-RPC method Graphene nodes route through the
	// api registry; the target namespace and method travel in params.
	callMethod = "call"
	// noticeMethod marks subscription pushes.
	noticeMethod = "notice"

	// LoginNamespace is always available as api id 1. Every other namespace id
	// is obtained by calling a method of the same name on it.
	LoginNamespace = "login"
	loginAPIID     = 1
)

// Request is an outbound envelope:
//
//	{"jsonrpc":"2.0","id":7,"method":"call","params":[2,"get_chain_id",[]]}
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewCallRequest builds the envelope that invokes method on the api with id apiID.
func NewCallRequest(id uint64, apiID int, method string, args []any) Request {
	if args == nil {
		args = []any{}
	}
	return Request{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  callMethod,
		Params:  []any{apiID, method, args},
	}
}

// envelope is the union of every inbound shape. Fields are kept raw so that a
// present-but-null result can be told apart from an absent one.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return env, nil
}

// requestID reports the numeric id of the envelope. Nodes echo the id in the
// form it was sent, but a quoted number is accepted as well.
func (e envelope) requestID() (uint64, bool) {
	raw := bytes.TrimSpace(e.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var id uint64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

func (e envelope) hasResult() bool  { return len(e.Result) > 0 }
func (e envelope) nullResult() bool { return bytes.Equal(bytes.TrimSpace(e.Result), []byte("null")) }
func (e envelope) hasError() bool   { return len(e.Error) > 0 && !bytes.Equal(e.Error, []byte("null")) }

func (e envelope) remoteError() (*RemoteError, error) {
	var rerr RemoteError
	if err := json.Unmarshal(e.Error, &rerr); err != nil {
		return nil, fmt.Errorf("%w: undecodable error object: %w", ErrProtocolViolation, err)
	}
	if rerr.Message == "" && rerr.Code == 0 {
		return nil, fmt.Errorf("%w: empty error object", ErrProtocolViolation)
	}
	return &rerr, nil
}

// Notification is a subscription push delivered to listeners. Objects holds the
// changed objects that matched the listener's filter; removed objects arrive as
// bare id strings.
type Notification struct {
	CallbackID uint64
	Objects    []json.RawMessage
}

// parseNotice decodes {"method":"notice","params":[callbackID,payload]}.
func parseNotice(env envelope) (uint64, json.RawMessage, error) {
	if env.Method != noticeMethod {
		return 0, nil, fmt.Errorf("%w: unexpected method %q", ErrUnrecognizedNotification, env.Method)
	}

	var params []json.RawMessage
	if err := json.Unmarshal(env.Params, &params); err != nil || len(params) != 2 {
		return 0, nil, fmt.Errorf("%w: notice params must be [callback, payload]", ErrUnrecognizedNotification)
	}

	var cb uint64
	if err := json.Unmarshal(params[0], &cb); err != nil {
		return 0, nil, fmt.Errorf("%w: callback id: %w", ErrUnrecognizedNotification, err)
	}
	return cb, params[1], nil
}

// flattenObjects walks nested arrays and returns every object or id string.
func flattenObjects(payload json.RawMessage) []json.RawMessage {
	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 {
		return nil
	}

	if raw[0] != '[' {
		return []json.RawMessage{raw}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []json.RawMessage
	for _, item := range items {
		out = append(out, flattenObjects(item)...)
	}
	return out
}

// objectID returns the Graphene id of a changed object, or the id itself when
// the node reports a removal.
func objectID(obj json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(obj, &id); err == nil {
		return id, id != ""
	}

	var withID struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(obj, &withID); err != nil || withID.ID == "" {
		return "", false
	}
	return withID.ID, true
}

// collectObjectIDs gathers every "id" string found anywhere in a call result.
// A get_full_accounts result, for instance, yields the account, its statistics
// and its balance objects.
func collectObjectIDs(result json.RawMessage) map[string]struct{} {
	var v any
	if err := json.Unmarshal(result, &v); err != nil {
		return nil
	}

	ids := make(map[string]struct{})
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if id, ok := t["id"].(string); ok && id != "" {
				ids[id] = struct{}{}
			}
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(v)
	return ids
}
