package policy

import "strings"

// MaskEmail keeps the first two characters of the local part:
// jane.doe@example.com -> ja****@example.com
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "****" + email[at:]
	}
	return local[:2] + "****" + email[at:]
}

// MaskPhone keeps the leading and trailing digits of a phone number:
// +1 415 555 0100 -> +14*******00
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, char := range phone {
		if char >= '0' && char <= '9' || char == '+' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 7 {
		return phone
	}
	prefix := string(digits[:3])
	suffix := string(digits[len(digits)-2:])
	return prefix + strings.Repeat("*", len(digits)-5) + suffix
}
