package mrz

import "strings"

var digitFixes = strings.NewReplacer(
	"O", "0", "Q", "0", "D", "0",
	"I", "1", "L", "1",
	"Z", "2",
	"S", "5",
	"G", "6",
	"B", "8",
)

var letterFixes = strings.NewReplacer(
	"0", "O",
	"1", "I",
	"2", "Z",
	"5", "S",
	"8", "B",
)

// digits replaces letters OCR commonly confuses with digits
func digits(s string) string {
	return digitFixes.Replace(s)
}

// letters replaces digits OCR commonly confuses with letters
func letters(s string) string {
	return letterFixes.Replace(s)
}

// checkDigit computes the ICAO 9303 check digit of s
func checkDigit(s string) int {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += charValue(s[i]) * weights[i%3]
	}
	return sum % 10
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}

// verify reports whether check is the check digit of field.
// A filler '<' counts as zero.
func verify(field string, check byte) bool {
	if check != '<' && (check < '0' || check > '9') {
		return false
	}
	return charValue(check) == checkDigit(field)
}

// lines splits recognized text into upper case lines holding only MRZ
// characters
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.Map(mrzRune, strings.ToUpper(l))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func mrzRune(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '<':
		return r
	default:
		return -1
	}
}

// selectLines picks the run of count lines whose lengths are closest to
// width, preferring later lines on ties, and pads or truncates each to width.
// It returns nil when there are not enough lines.
func selectLines(all []string, count, width int) []string {
	if len(all) < count {
		return nil
	}
	best, bestCost := -1, 0
	for start := 0; start+count <= len(all); start++ {
		cost := 0
		for _, l := range all[start : start+count] {
			cost += abs(len(l) - width)
		}
		if best == -1 || cost <= bestCost {
			best, bestCost = start, cost
		}
	}

	out := make([]string, count)
	for i, l := range all[best : best+count] {
		if len(l) > width {
			l = l[:width]
		}
		out[i] = l + strings.Repeat("<", width-len(l))
	}
	return out
}

// names splits the name field into surname and given names
func names(field string) (string, string) {
	field = letters(field)
	surname, given, _ := strings.Cut(field, "<<")
	return filler(surname), filler(given)
}

// filler turns '<' separators into single spaces and trims the result
func filler(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '<' }), " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
