// Package phone holds the phone number value type and the two predicates
// used to reconcile address-book numbers with registered users.
package phone

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SuffixLength is the number of trailing characters compared by SameSuffix.
const SuffixLength = 7

// ErrInvalid is returned when a phone number payload is neither a string nor an object.
var ErrInvalid = errors.New("invalid phone number")

// Number is an immutable phone number as submitted. Value is kept verbatim,
// formatting characters included.
type Number struct {
	ISOCode  string `json:"isoCode"`
	DialCode string `json:"dialCode"`
	Value    string `json:"phoneNumber"`
}

// UnmarshalJSON accepts either the object form or a bare string, which is
// taken as the number with empty ISO and dial codes.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return fmt.Errorf("%w: null", ErrInvalid)
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		*n = Number{Value: s}
		return nil
	case data[0] == '{':
		type plain Number
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		*n = Number(p)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalid, data)
	}
}

// Direct reports byte-for-byte equality of the two numbers.
func Direct(a, b string) bool {
	return a == b
}

// SameSuffix reports whether both numbers have at least SuffixLength
// characters and their last SuffixLength characters are equal.
func SameSuffix(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < SuffixLength || len(rb) < SuffixLength {
		return false
	}
	return string(ra[len(ra)-SuffixLength:]) == string(rb[len(rb)-SuffixLength:])
}

// Matches reports whether a and b denote the same subscriber under either
// the direct or the suffix rule.
func Matches(a, b string) bool {
	return Direct(a, b) || SameSuffix(a, b)
}

// FromRecord decodes a number stored in a document, which may be an object
// with isoCode/dialCode/phoneNumber keys or a bare string. Missing keys and
// unexpected shapes yield empty fields.
func FromRecord(v any) Number {
	switch t := v.(type) {
	case string:
		return Number{Value: t}
	case map[string]any:
		return Number{
			ISOCode:  str(t["isoCode"]),
			DialCode: str(t["dialCode"]),
			Value:    str(t["phoneNumber"]),
		}
	default:
		return Number{}
	}
}

// Record returns the document form of n.
func (n Number) Record() map[string]any {
	return map[string]any{
		"isoCode":     n.ISOCode,
		"dialCode":    n.DialCode,
		"phoneNumber": n.Value,
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
