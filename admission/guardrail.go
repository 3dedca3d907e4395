package admission

import (
	"regexp"
	"strings"
)

// injectionPatterns captures the recognized prompt-injection shapes (§4.8):
// instruction-override phrases, role-play prefixes, known injection
// markers, template-delimiter splices, and HTML/script tags.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+|the\s+)?above`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+|the\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+\w+`),
	regexp.MustCompile(`(?i)act\s+as\s+(a|an)\s+\w+`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)\[\[.*?\]\]`),
	regexp.MustCompile(`(?i)\{\{.*?\}\}`),
	regexp.MustCompile(`(?i)<\s*script[^>]*>`),
	regexp.MustCompile(`(?i)<\s*/?\s*[a-z][a-z0-9]*\s*[^>]*>`),
}

// restrictedOperations is the whole-word-matched set of destructive verbs
// (§4.8); "restricted functions" matching named by the source but not
// enforced by it is deliberately NOT implemented here (open policy
// question, see §9).
var restrictedOperations = []string{"delete", "drop", "truncate", "format", "wipe", "destroy"}

var restrictedPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(restrictedOperations, "|") + `)\b`)

// Guardrail runs the C2 content checks over an incoming intent.
type Guardrail struct{}

// NewGuardrail builds a Guardrail. It is stateless.
func NewGuardrail() *Guardrail {
	return &Guardrail{}
}

// Check runs the ordered C2 checks: empty intent/userId, prompt-injection
// patterns, then restricted-operation whole-word match. It returns a
// non-empty Kind naming the first violation found, or "" if intent passes.
func (g *Guardrail) Check(intent, userID string) Kind {
	if strings.TrimSpace(intent) == "" || strings.TrimSpace(userID) == "" {
		return KindInvalid
	}
	for _, p := range injectionPatterns {
		if p.MatchString(intent) {
			return KindPromptInjection
		}
	}
	if restrictedPattern.MatchString(intent) {
		return KindSensitiveOperation
	}
	return ""
}
