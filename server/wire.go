package server

import (
	"github.com/jalmeida85/tls13srv/record"
)

// appendAndProtect feeds framed (a complete handshake message, header
// included) into the transcript and frames it as one outgoing record
// under the write side's current key (cleartext before any key is
// installed, AEAD-protected after), mirroring
// _examples/yaronf-mint/state-machine.go's queue-then-marshal step but
// collapsed into a single call since this core has no separate
// "pending outbound buffer" stage.
func appendAndProtect(st *State, framed []byte) ([]byte, error) {
	st.HandshakeContext.Append(framed)
	return st.WriteRecordLayer.Protect(record.ContentTypeHandshake, framed, 0)
}
