package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"EarningsScreener/internal/model"
)

// Report is the daily screen outcome to be rendered.
type Report struct {
	Date time.Time
	Rows []model.ResultRow
	// Shortfall lists symbols skipped for lacking enough listed expirations.
	Shortfall []string
	// Errors holds "SYMBOL: message" lines for every other failure.
	Errors []string
	// Filtered lists symbols below the market cap threshold.
	Filtered []string
}

var tableHeader = []string{"Symbol", "Company", "Rating", "Avg Vol", "IV30/RV30", "Exp Move", "Slope 0-45"}

// FormatReport renders a report for every channel.
func FormatReport(r Report) Message {
	date := r.Date.Format("2006-01-02")
	msg := Message{
		Subject: fmt.Sprintf("Earnings Recommendations - %s", date),
		Summary: Summary(r.Rows),
	}
	if len(r.Rows) == 0 {
		msg.Subject += " (No Results)"
	}

	notes := reportNotes(r)
	msg.Text = strings.Join(notes, "\n")
	if len(r.Rows) > 0 {
		msg.Text = FormatRows(r.Rows) + "\n" + msg.Text
	}
	msg.HTML = formatHTML(date, r.Rows, notes)
	return msg
}

// Summary is the one-line digest of actionable symbols.
func Summary(rows []model.ResultRow) string {
	var goes, considers []string
	for _, row := range rows {
		switch row.Rating {
		case model.RatingGo:
			goes = append(goes, row.Symbol)
		case model.RatingConsider:
			considers = append(considers, row.Symbol)
		}
	}
	if len(goes) == 0 && len(considers) == 0 {
		return "No Go or Consider symbols today"
	}
	var parts []string
	if len(goes) > 0 {
		parts = append(parts, "GO: "+strings.Join(goes, ", "))
	}
	if len(considers) > 0 {
		parts = append(parts, "CONSIDER: "+strings.Join(considers, ", "))
	}
	return strings.Join(parts, " | ")
}

func reportNotes(r Report) []string {
	notes := []string{fmt.Sprintf("Processed %d tickers successfully.", len(r.Rows))}
	if n := len(r.Shortfall) + len(r.Errors); n > 0 {
		notes = append(notes, fmt.Sprintf("Errors occurred for %d tickers:", n))
		if len(r.Shortfall) > 0 {
			notes = append(notes, "• Not enough expirations: "+strings.Join(r.Shortfall, ", "))
		}
		if len(r.Errors) > 0 {
			notes = append(notes, "• Other errors:")
			for _, e := range r.Errors {
				notes = append(notes, "  - "+e)
			}
		}
	}
	if len(r.Filtered) > 0 {
		notes = append(notes, fmt.Sprintf("Below market cap: %d (%s)", len(r.Filtered), strings.Join(r.Filtered, ", ")))
	}
	return notes
}

// FormatRows renders rows as a monospaced table.
func FormatRows(rows []model.ResultRow) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(tableHeader)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(rowCells(row))
	}
	table.Render()
	return b.String()
}

func rowCells(row model.ResultRow) []string {
	company := row.Company
	if len(company) > 24 {
		company = company[:21] + "..."
	}
	return []string{
		row.Symbol,
		company,
		string(row.Rating),
		passMark(row.AvgVolume),
		passMark(row.IV30RV30),
		strOrDash(row.ExpectedMove),
		floatOrDash(row.TSSlope045, "%.5f"),
	}
}

// FormatRecommendation renders one symbol with its diagnostics.
func FormatRecommendation(rec *model.Recommendation) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> | %s\n\n", html.EscapeString(rec.Symbol), rec.Rating))
	b.WriteString(p.Sprintf("Price: %.2f\n", rec.UnderlyingPrice))
	if rec.AvgVolumeValue != nil {
		b.WriteString(p.Sprintf("Avg volume (30d): %.0f %s\n", *rec.AvgVolumeValue, passMark(rec.AvgVolume)))
	} else {
		b.WriteString(fmt.Sprintf("Avg volume (30d): - %s\n", passMark(rec.AvgVolume)))
	}
	b.WriteString(fmt.Sprintf("IV30: %.4f | RV30: %s\n", rec.IV30, floatOrDash(rec.RV30, "%.4f")))
	b.WriteString(fmt.Sprintf("IV30/RV30: %s %s\n", floatOrDash(rec.IV30RV30Value, "%.3f"), passMark(rec.IV30RV30)))
	b.WriteString(fmt.Sprintf("Slope 0-45: %s %s\n", floatOrDash(rec.TSSlope045, "%.5f"), passMark(rec.Slope)))
	b.WriteString(fmt.Sprintf("Straddle: %s | Expected move: %s\n", floatOrDash(rec.Straddle, "%.2f"), strOrDash(rec.ExpectedMove)))
	if !rec.ComputedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Computed: %s\n", rec.ComputedAt.UTC().Format("2006-01-02 15:04 MST")))
	}
	return b.String()
}

func formatHTML(date string, rows []model.ResultRow, notes []string) string {
	var b strings.Builder
	b.WriteString(`<html><head><style>
body { font-family: Arial, sans-serif; margin: 20px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
tr.go td { background-color: #e6f4ea; }
</style></head><body>
`)
	b.WriteString(fmt.Sprintf("<h3>Earnings recommendations for %s</h3>\n", html.EscapeString(date)))
	for _, n := range notes {
		b.WriteString("<p>" + html.EscapeString(n) + "</p>\n")
	}
	if len(rows) > 0 {
		b.WriteString("<table><thead><tr>")
		for _, h := range tableHeader {
			b.WriteString("<th>" + h + "</th>")
		}
		b.WriteString("</tr></thead><tbody>\n")
		for _, row := range rows {
			if row.Rating == model.RatingGo {
				b.WriteString(`<tr class="go">`)
			} else {
				b.WriteString("<tr>")
			}
			for _, c := range rowCells(row) {
				b.WriteString("<td>" + html.EscapeString(c) + "</td>")
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</tbody></table>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

// splitLines breaks text into chunks of at most max bytes on line boundaries.
// A single line longer than max is cut.
func splitLines(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > max {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			parts = append(parts, line[:max])
			line = line[max:]
		}
		if cur.Len()+len(line) > max {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func passMark(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func strOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func floatOrDash(f *float64, format string) string {
	if f == nil || math.IsNaN(*f) {
		return "-"
	}
	return fmt.Sprintf(format, *f)
}
