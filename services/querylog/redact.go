package querylog

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	// Australian landline/mobile numbers, national or +61 form
	phonePattern = regexp.MustCompile(`(?:\+61[ -]?|\b0)[2-478](?:[ -]?\d){8}\b`)

	// 13 to 19 digits, optionally grouped by spaces or dashes; confirmed with Luhn
	cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

// RedactPII masks email addresses, phone numbers and payment card numbers.
// Prices, speeds and data allowances pass through untouched.
func RedactPII(text string) string {
	text = cardPattern.ReplaceAllStringFunc(text, func(m string) string {
		if luhnCheck(m) {
			return "[CC_REDACTED]"
		}
		return m
	})
	text = phonePattern.ReplaceAllString(text, "[PHONE_REDACTED]")
	text = emailPattern.ReplaceAllString(text, "[EMAIL_REDACTED]")
	return text
}

// luhnCheck validates a card number using the Luhn algorithm
func luhnCheck(cardNumber string) bool {
	cardNumber = strings.ReplaceAll(cardNumber, " ", "")
	cardNumber = strings.ReplaceAll(cardNumber, "-", "")

	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isSecond := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')
		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isSecond = !isSecond
	}

	return sum%10 == 0
}
