// Package rpc is the connection and dispatch core of the BitShares client.
//
// A Session owns one websocket connection to a Graphene node and multiplexes
// any number of concurrent calls over it. Graphene exposes its APIs as numbered
// namespaces behind a single JSON-RPC method:
//
//	{"jsonrpc":"2.0","id":3,"method":"call","params":[2,"get_chain_id",[]]}
//
// where 2 is the id the node assigned to the "database" namespace for this
// login. The Router learns these ids by calling login.<namespace> on api 1 and
// caches them until the connection drops.
//
// # Components
//
//   - Transport emits Connected, Message, Disconnected and Error events for
//     one connection. WebsocketTransport is the production implementation.
//   - Registry hands out request ids and owns the waiter of every
//     outstanding request. Unknown ids are ignored, so a response that arrives
//     after a timeout or a disconnect is discarded.
//   - Router maps namespace names to api ids with single-flight lookups.
//   - Fanout delivers "notice" pushes to subscription listeners, each on its
//     own goroutine.
//   - Session ties them together and runs the state machine
//     Disconnected → Connecting → Authenticating → Ready, with Closing on Close.
//
// # Errors
//
// Callers distinguish outcomes with errors.Is and errors.As:
//
//	raw, err := s.Call(ctx, "database", "get_account_by_name", []any{"alice"})
//	var remote *rpc.RemoteError
//	switch {
//	case errors.As(err, &remote):
//	    // the node answered with an error object
//	case errors.Is(err, rpc.ErrTimeout):
//	    // the node may still have executed the call
//	case errors.Is(err, rpc.ErrConnectionLost):
//	    // the connection failed while the call was outstanding
//	}
//
// Remote errors and timeouts are never retried. Connection failures are
// retried by the session according to Config.Reconnect; an authentication
// failure stops it.
package rpc
