package summarizer

import (
	"fmt"
	"regexp"
	"strings"

	"financeagent/internal/evidence"
)

const systemPrompt = "You are a careful financial research assistant. Answer only from the data you are given and say so when it is missing."

// Fallback notes shown in place of a summary. The error text is appended.
const (
	FallbackNote           = "I couldn't generate a summary, but I did gather the raw data below. Error: "
	ComparisonFallbackNote = "I couldn't generate an investment summary, but the raw data is available below. Error: "
)

var spacedRun = regexp.MustCompile(`(?:\b[0-9A-Za-z]\s){3,}[0-9A-Za-z]\b`)

// NormalizeSpacedText joins runs of single letters or digits separated by
// spaces, which models sometimes emit for tickers ("A A P L" becomes "AAPL")
func NormalizeSpacedText(text string) string {
	return spacedRun.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ReplaceAll(m, " ", "")
	})
}

// BuildPrompt renders the question prompt handed to the summarizer
func BuildPrompt(prompt string, tickers []string, bundle evidence.Bundle) (string, error) {
	data, err := bundle.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}

	tickerLine := "None detected"
	if len(tickers) > 0 {
		tickerLine = strings.Join(tickers, ", ")
	}

	var b strings.Builder
	b.WriteString("You are a financial analyst. Write a structured, data-driven answer using the live market data and news below.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Open with a short executive summary that answers the question directly.\n")
	b.WriteString("2. Use markdown tables, bullet points and bold text for key metrics.\n")
	b.WriteString("3. Cite news items with their full URLs when available.\n")
	b.WriteString("4. Never invent financial numbers. If data is missing or unrelated, say the answer is best-effort.\n")
	b.WriteString("5. Do not insert spaces between letters.\n\n")
	fmt.Fprintf(&b, "User prompt:\n%s\n\n", prompt)
	fmt.Fprintf(&b, "Detected tickers: %s\n\n", tickerLine)
	fmt.Fprintf(&b, "Tool data (JSON):\n%s", data)
	return b.String(), nil
}

// BuildComparisonPrompt renders the two-ticker comparison prompt
func BuildComparisonPrompt(tickerA, tickerB, focus string, bundle evidence.Bundle) (string, error) {
	data, err := bundle.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}

	focusLine := "Focus area: valuation, growth, risk, catalysts."
	if focus != "" {
		focusLine = "Focus area: " + focus
	}

	var b strings.Builder
	b.WriteString("You are an investment analyst. Compare the two requested tickers using the live data below.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Give a side-by-side table of key metrics (price, market cap, P/E, EPS, analyst consensus) where available.\n")
	b.WriteString("2. Summarize recent news with links and list the key catalysts and risks.\n")
	b.WriteString("3. Do not give personalized financial advice.\n")
	b.WriteString("4. Never invent numbers. If data is missing, say so.\n")
	b.WriteString("5. Do not insert spaces between letters.\n\n")
	fmt.Fprintf(&b, "Tickers: %s, %s\n", tickerA, tickerB)
	fmt.Fprintf(&b, "%s\n\n", focusLine)
	fmt.Fprintf(&b, "Tool data (JSON):\n%s", data)
	return b.String(), nil
}

// ComparisonQuestion is the prompt the comparison flow aggregates for
func ComparisonQuestion(tickerA, tickerB, focus string) string {
	q := fmt.Sprintf("Compare %s and %s on valuation, financial strength, growth, analyst sentiment, and recent news.", tickerA, tickerB)
	if focus != "" {
		q += fmt.Sprintf(" Focus: %s.", focus)
	}
	return q
}
