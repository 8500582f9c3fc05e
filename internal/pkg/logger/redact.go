package logger

// RedactPhone masks a phone number for safe logging, keeping the country
// prefix and the last four digits.
// "+5511987654321" → "+55*******4321"
// Numbers shorter than seven characters are fully masked.
func RedactPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	head := 3
	if phone[0] != '+' {
		head = 2
	}
	tail := 4
	masked := make([]byte, 0, len(phone))
	masked = append(masked, phone[:head]...)
	for i := head; i < len(phone)-tail; i++ {
		masked = append(masked, '*')
	}
	masked = append(masked, phone[len(phone)-tail:]...)
	return string(masked)
}
