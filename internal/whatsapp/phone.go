package whatsapp

import "strings"

// FormatKenyanNumber normalizes a phone number to the 254XXXXXXXXX wire
// format. Returns false for anything that cannot be a Kenyan mobile number.
func FormatKenyanNumber(phone string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+':
			return -1
		}
		return r
	}, phone)

	// Local formats 07XX / 01XX become 2547XX / 2541XX.
	if strings.HasPrefix(cleaned, "07") || strings.HasPrefix(cleaned, "01") {
		cleaned = "254" + cleaned[1:]
	}

	if !strings.HasPrefix(cleaned, "254") {
		return "", false
	}
	// 254 + 9 digits.
	if len(cleaned) != 12 {
		return "", false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return cleaned, true
}
