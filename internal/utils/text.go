package utils

// Mask masks a sensitive string for display, showing only first and last few characters.
// E.g., "abc123xyz" -> "abc1****3xyz". Empty input stays empty.
func Mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
