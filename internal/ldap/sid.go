package ldap

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// minSIDLength is the revision, sub-authority count and 6-byte identifier authority.
const minSIDLength = 8

// DecodeSID converts a binary objectSid value to its S-1-5-21-... string form.
func DecodeSID(binarySID []byte) (string, error) {
	if len(binarySID) < minSIDLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}

	subAuthorities := int(binarySID[1])
	if expected := minSIDLength + 4*subAuthorities; len(binarySID) != expected {
		return "", fmt.Errorf("invalid binary SID length: expected %d bytes for %d sub-authorities, got %d",
			expected, subAuthorities, len(binarySID))
	}

	return objectsid.Decode(binarySID).String(), nil
}
