// Package identity derives stable identifiers for named entities.
package identity

import (
	"crypto/md5"
	"math/big"
)

// Length is the number of characters kept from the rendered digest.
const Length = 12

// DeriveID returns the first Length decimal digits of the MD5 digest of text.
// The same text always yields the same id, across processes and releases.
func DeriveID(text string) string {
	sum := md5.Sum([]byte(text))
	digits := new(big.Int).SetBytes(sum[:]).String()
	if len(digits) > Length {
		digits = digits[:Length]
	}
	return digits
}

// JobID derives the id of a posting from its position and company.
func JobID(position, company string) string {
	return DeriveID(position + "@" + company)
}
