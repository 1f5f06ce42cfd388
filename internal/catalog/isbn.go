// internal/catalog/isbn.go
package catalog

import "strings"

// ValidateISBN reports whether s is a valid ISBN-10 or ISBN-13. Hyphens and
// spaces are stripped before the length decides which checksum applies; any
// other cleaned length is invalid. The predicate is pure and stateless.
func ValidateISBN(s string) bool {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(s)

	switch len(cleaned) {
	case 10:
		return validateISBN10(cleaned)
	case 13:
		return validateISBN13(cleaned)
	default:
		return false
	}
}

// validateISBN10 checks the weighted mod-11 checksum. The first nine
// characters must be digits; the last may be a digit or X/x counting as 10.
func validateISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * (10 - i)
	}

	last := isbn[9]
	switch {
	case last >= '0' && last <= '9':
		sum += int(last - '0')
	case last == 'X' || last == 'x':
		sum += 10
	default:
		return false
	}

	return sum%11 == 0
}

// validateISBN13 checks the alternating 1,3-weighted checksum. All thirteen
// characters must be digits and the prefix must be 978 or 979.
func validateISBN13(isbn string) bool {
	for i := 0; i < 13; i++ {
		if isbn[i] < '0' || isbn[i] > '9' {
			return false
		}
	}

	if !strings.HasPrefix(isbn, "978") && !strings.HasPrefix(isbn, "979") {
		return false
	}

	sum := 0
	for i := 0; i < 12; i++ {
		d := int(isbn[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}

	check := (10 - sum%10) % 10
	return check == int(isbn[12]-'0')
}
