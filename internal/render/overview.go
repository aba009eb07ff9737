// Package render formats evidence bundles for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"financeagent/internal/evidence"
	"financeagent/internal/fetcher"
)

var overviewHeader = []string{"Ticker", "Price", "Company info", "Analyst recs", "Company news"}

// Overview renders a short status report of the bundle: one line per web
// section followed by a markdown table with one row per ticker
func Overview(b evidence.Bundle) string {
	var sb strings.Builder

	if line, ok := sectionLine("Web news", b.Web.News); ok {
		sb.WriteString(line + "\n")
	}
	if line, ok := sectionLine("Web search", b.Web.Search); ok {
		sb.WriteString(line + "\n")
	}

	if len(b.Finance) == 0 {
		return sb.String()
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}

	tickers := make([]string, 0, len(b.Finance))
	for t := range b.Finance {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	rows := [][]string{overviewHeader}
	for _, t := range tickers {
		r := b.Finance[t]
		price := "error"
		if r.Price.IsOk() {
			price = r.Price.Value
		}
		rows = append(rows, []string{
			t,
			price,
			documentCell(r.CompanyInfo),
			documentCell(r.AnalystRecommendations),
			documentCell(r.CompanyNews),
		})
	}

	for _, line := range Table(rows) {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func sectionLine[T any](name string, s *evidence.Section[T]) (string, bool) {
	if s == nil {
		return "", false
	}
	if !s.Result.IsOk() {
		return fmt.Sprintf("%s: error: %s", name, s.Result.Err), true
	}
	return fmt.Sprintf("%s: %d results (%d relevant)", name, len(s.Result.Value), len(s.Filtered)), true
}

func documentCell(r fetcher.Result[fetcher.Document]) string {
	if !r.IsOk() {
		return "error"
	}
	if items, ok := r.Value.Decode().([]any); ok {
		return fmt.Sprintf("%d items", len(items))
	}
	return "ok"
}

// Table renders rows as a markdown table. The first row is the header.
// Columns are padded to their display width so wide characters line up.
func Table(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	colWidths := make([]int, colCount)
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	line := func(cells []string, separator bool) string {
		var sb strings.Builder
		sb.WriteString("|")
		for j := 0; j < colCount; j++ {
			sb.WriteString(" ")
			if separator {
				sb.WriteString(strings.Repeat("-", colWidths[j]))
			} else {
				content := ""
				if j < len(cells) {
					content = cells[j]
				}
				sb.WriteString(content)
				sb.WriteString(strings.Repeat(" ", colWidths[j]-runewidth.StringWidth(content)))
			}
			sb.WriteString(" |")
		}
		return sb.String()
	}

	out := make([]string, 0, len(rows)+1)
	out = append(out, line(rows[0], false), line(nil, true))
	for _, row := range rows[1:] {
		out = append(out, line(row, false))
	}
	return out
}
