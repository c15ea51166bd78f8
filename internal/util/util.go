package util

import "strings"

// MaskEmail obscures the local part of an email address for logging purposes,
// keeping the first character and the domain.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return maskTail(email)
	}
	local := email[:at]
	domain := email[at:]
	if len(local) <= 1 {
		return "*" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// MaskPhone obscures a phone number, showing only the last few digits.
func MaskPhone(phone string) string {
	return maskTail(phone)
}

// MaskIdentifier masks an email or phone depending on its shape.
func MaskIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return MaskEmail(identifier)
	}
	return MaskPhone(identifier)
}

func maskTail(value string) string {
	if len(value) > 4 {
		return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
	}
	if len(value) > 1 {
		return strings.Repeat("*", len(value)-1) + value[len(value)-1:]
	}
	return value
}
