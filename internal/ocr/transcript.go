package ocr

import (
	"fmt"
	"strings"
)

// transcribePrompt is the shared prompt used by all LLM providers for reading an MRZ
const transcribePrompt = `You are reading the machine readable zone (MRZ) of a passport or identity card. The image shows the bottom band of the document after contrast enhancement, so the MRZ appears as black monospace text on white.

Transcribe the MRZ exactly as printed:

1. **Lines**: A passport has 2 lines of 44 characters. An identity card has 3 lines of 30 characters. Output one MRZ line per line of text, top to bottom.

2. **Characters**: Only use the characters A-Z, 0-9 and the filler character "<". Never replace "<" with spaces, dashes or other symbols, and keep every filler character in place.

3. **Accuracy**: Do not correct, guess or complete anything. If a character is unreadable, output your best reading of its shape.

Important:
- Do not include any text before or after the MRZ lines
- Do not use markdown code blocks
- Do not add explanations`

// cleanTranscript strips formatting an LLM may wrap around the MRZ lines and
// drops lines holding characters outside the whitelist.
func cleanTranscript(text string, whitelist string) (string, error) {
	text = strings.TrimSpace(text)
	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", fmt.Errorf("empty transcript")
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if whitelist != "" && strings.Trim(line, whitelist) != "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("no MRZ lines in transcript")
	}
	return strings.Join(kept, "\n"), nil
}
