// Package bitshares provides typed access to a BitShares node on top of an
// rpc.Session.
//
// DatabaseAPI and HistoryAPI map one method each onto the node's database and
// history namespaces and decode the results into the schema types of this
// package. Every decoded result is checked with go-playground/validator, so a
// node returning a malformed object yields a *DecodeError instead of a half
// filled struct.
//
// On top of the façades sit a few helpers that answer common questions in
// one call: GetAccount, AccountExists, GetAccountBalance and
// GetTransactionsHistory.
//
//	sess, _ := rpc.NewSession(cfg)
//	_ = sess.Connect(ctx)
//	balance, err := bitshares.GetAccountBalance(ctx, sess, "alice")
package bitshares
