package loyalty

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const rutMaxLen = 9

// NormalizeRUT strips everything but letters and digits, uppercases, maps
// the K check digit to 0 and keeps at most nine characters.
func NormalizeRUT(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			continue
		}
		if r == 'K' {
			r = '0'
		}
		b.WriteRune(r)
		if b.Len() == rutMaxLen {
			break
		}
	}
	return b.String()
}

// NormalizePhone parses a phone number in the given default region and
// returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone is empty")
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("parse phone %q: %w", raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("phone %q is not a valid number", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
