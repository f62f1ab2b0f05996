// Package hostname validates candidate hostnames before they are allowed
// to reach the correlation engine or the allow-list.
package hostname

// maxLength is the RFC 1035 limit on a full domain name.
const maxLength = 253

// maxLabelLength is the RFC 1035 limit on a single label.
const maxLabelLength = 63

// Valid reports whether value is a well-formed hostname: dot-separated
// labels of alphanumerics and hyphens, no label starting or ending with a
// hyphen, no trailing dot, at most 253 characters. Matching is
// case-insensitive; validity does not depend on letter case.
func Valid(value string) bool {
	if value == "" || len(value) > maxLength {
		return false
	}
	if value[len(value)-1] == '.' {
		return false
	}

	labelLen := 0
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '.':
			if labelLen == 0 {
				return false
			}
			if value[i-1] == '-' {
				return false
			}
			labelLen = 0
		case c == '-':
			if labelLen == 0 {
				return false
			}
			labelLen++
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			labelLen++
		default:
			return false
		}
		if labelLen > maxLabelLength {
			return false
		}
	}

	// Final label must be non-empty and not end with a hyphen.
	return labelLen > 0 && value[len(value)-1] != '-'
}
