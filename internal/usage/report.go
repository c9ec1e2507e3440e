package usage

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	reportTitleStyle  = lipgloss.NewStyle().Bold(true)
	reportHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	reportDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render formats the report as a terminal table.
func (r Report) Render() string {
	var b strings.Builder

	b.WriteString(reportTitleStyle.Render("Provider usage"))
	b.WriteString("\n")

	header := fmt.Sprintf("%-10s %9s %9s %9s %12s %13s %8s",
		"PROVIDER", "ATTEMPTS", "SUCCESS", "RATE", "TOKENS IN", "TOKENS OUT", "RETRIES")
	b.WriteString(reportHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, s := range r.Providers {
		b.WriteString(fmt.Sprintf("%-10s %9d %9d %8.1f%% %12d %13d %8d\n",
			s.Provider, s.Attempts, s.Successes, s.SuccessRate()*100,
			s.PromptTokens, s.CompletionTokens, s.Retries))

		if len(s.Failures) > 0 {
			var kinds []string
			for outcome, count := range s.Failures {
				kinds = append(kinds, fmt.Sprintf("%s×%d", outcome, count))
			}
			b.WriteString(reportDimStyle.Render("           failures: " + strings.Join(kinds, ", ")))
			b.WriteString("\n")
		}
	}

	totalRate := 0.0
	if r.TotalAttempts > 0 {
		totalRate = float64(r.TotalSuccesses) / float64(r.TotalAttempts) * 100
	}
	b.WriteString(reportDimStyle.Render(fmt.Sprintf(
		"total: %d attempts, %d ok (%.1f%%), %d tokens in, %d tokens out, %d retries, %s elapsed",
		r.TotalAttempts, r.TotalSuccesses, totalRate,
		r.TotalPromptTokens, r.TotalCompletionTokens, r.TotalRetries,
		r.Elapsed.Round(100_000_000)))) // 100ms
	b.WriteString("\n")

	return b.String()
}
