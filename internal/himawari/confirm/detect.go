package confirm

import "strings"

// Outcome classifies a reply to a pending confirmation.
type Outcome int

const (
	// Unclear means the reply was not a recognizable confirmation; the
	// caller should treat it as a fresh message.
	Unclear Outcome = iota
	// Positive applies the pending change.
	Positive
	// Negative keeps the old value.
	Negative
	// Conditional rejects the proposed value but asks for a different
	// one in the same breath ("no, use t3.small instead").
	Conditional
)

var positivePhrases = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay", "correct", "right",
	"update it", "change it", "go ahead", "proceed", "confirm",
	"yes update", "yes change", "that's right", "sounds good",
}

var negativePhrases = []string{
	"no", "nope", "don't", "cancel", "wrong", "incorrect",
	"keep original", "don't change", "no thanks", "cancel that",
}

// DetectResponse classifies free text as a confirmation reply. The
// conditional form is checked first because it necessarily begins with a
// negative; plain negatives come before positives so "incorrect" is not
// read as "correct".
func DetectResponse(text string) Outcome {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Unclear
	}

	if strings.HasPrefix(text, "no") &&
		(strings.Contains(text, "use") || strings.Contains(text, "instead") || strings.Contains(text, "change to")) {
		return Conditional
	}

	for _, p := range negativePhrases {
		if strings.Contains(text, p) {
			return Negative
		}
	}
	for _, p := range positivePhrases {
		if strings.Contains(text, p) {
			return Positive
		}
	}
	return Unclear
}
