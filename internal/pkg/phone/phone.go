// Package phone normalizes raw roster phone numbers to E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalid is returned for input that is not a dialable number.
var ErrInvalid = errors.New("invalid phone number")

// Normalizer converts raw numbers to E.164 using a default region for
// numbers written without a country prefix.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer for the ISO 3166 region code, e.g. "BR".
func NewNormalizer(defaultRegion string) *Normalizer {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = "BR"
	}
	return &Normalizer{region: region}
}

// Normalize returns the canonical E.164 form of raw.
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalid)
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
