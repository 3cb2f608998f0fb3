// Package idgen generates the 16-bit transaction IDs the resolver and the
// query tool put on outgoing requests for matching responses to them.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// TransactionID returns a cryptographically random 16-bit value. Never use
// math/rand here: a predictable transaction ID lets an off-path attacker
// forge an upstream reply the resolver would accept.
func TransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("idgen: crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}
