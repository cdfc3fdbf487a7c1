package expr

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainExpression prefixes expression content hashes.
// The version suffix allows the canonical form to change later.
const DomainExpression = "hybridsr/expr/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps domain and data unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ID returns the content-addressed identity of e, derived from its
// canonical text. Structurally equal expressions share an ID.
func ID(e Expr) string {
	return hashWithDomain(DomainExpression, []byte(e.String()))
}
