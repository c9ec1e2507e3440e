package provider

import "strings"

// Word-to-token factors, documented as approximate. English text averages
// ~1.3 tokens per whitespace-separated word; denser scripts run higher.
const (
	englishTokenFactor = 1.3
	otherTokenFactor   = 1.5
)

// EstimateTokens approximates the token count of text by splitting on
// whitespace and applying a language factor. Used when a remote API omits
// usage data.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	factor := englishTokenFactor
	if !mostlyASCII(text) {
		factor = otherTokenFactor
	}
	return int(float64(words)*factor + 0.5)
}

// estimateUsage fills a TokenUsage from prompt and completion text.
func estimateUsage(promptText, completion string) TokenUsage {
	p := EstimateTokens(promptText)
	c := EstimateTokens(completion)
	return TokenUsage{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
		Estimated:        true,
	}
}

func mostlyASCII(s string) bool {
	if s == "" {
		return true
	}
	ascii := 0
	total := 0
	for _, r := range s {
		total++
		if r < 128 {
			ascii++
		}
	}
	return ascii*10 >= total*9
}
