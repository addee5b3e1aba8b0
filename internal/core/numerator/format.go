package numerator

import (
	"strconv"
	"strings"
)

// Format renders n in canonical form, e.g. A0001 or FAS2526KIW012.
func (f Format) Format(n int64) string {
	width := f.PadWidth
	if width <= 0 {
		width = 1
	}
	digits := strconv.FormatInt(n, 10)
	if pad := width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return f.Prefix + f.Separator + digits
}

// Parse extracts the integer suffix from a stored identifier.
// Input is trimmed and matched case-insensitively; anything that is not
// head + one or more ASCII digits (fitting in int64) is rejected with ok=false.
func (f Format) Parse(raw string) (n int64, ok bool) {
	ref := strings.ToUpper(strings.TrimSpace(raw))
	head := f.head()
	if !strings.HasPrefix(ref, head) {
		return 0, false
	}
	digits := ref[len(head):]
	if digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Canonical normalizes a stored identifier to its canonical rendering.
func (f Format) Canonical(raw string) (string, bool) {
	n, ok := f.Parse(raw)
	if !ok {
		return "", false
	}
	return f.Format(n), true
}
