package bitshares

import "github.com/kalutskii/etil-sterahstib/pkg/memo"

// Decrypt returns the plaintext of the memo. key must be the memo key of
// the sender or of the recipient.
func (m *Memo) Decrypt(key *memo.PrivateKey) (string, error) {
	return memo.DecryptMemo(key, m.From, m.To, string(m.Nonce), m.Message)
}
