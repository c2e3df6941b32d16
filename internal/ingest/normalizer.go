package ingest

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/bill-finder/internal/models"
)

// stripPolicy removes every tag; bluemonday policies are safe for concurrent use.
var stripPolicy = bluemonday.StrictPolicy()

var emphasisReplacer = strings.NewReplacer("**", "", "__", "", "*", "")

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return cleanText(raw) // Fallback to original if parsing fails
	}
	return cleanText(doc.Text())
}

// CleanSummary strips markup artifacts that LLM output tends to carry:
// stray HTML tags and markdown emphasis markers.
func CleanSummary(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = emphasisReplacer.Replace(s)
	return cleanText(s)
}

// NormalizeBill applies the defaulting rules once, at the parse boundary.
// Downstream code can rely on every field being populated.
func NormalizeBill(b *models.Bill) {
	b.Number = orDefault(b.Number, models.UnknownNumber)
	b.Title = orDefault(CleanSummary(b.Title), models.UntitledBill)
	b.Sponsor = orDefault(b.Sponsor, models.NotAvailable)
	b.Status = orDefault(b.Status, models.NotAvailable)
	b.Date = orDefault(b.Date, models.NotAvailable)
	b.Summary = CleanSummary(b.Summary)
	b.URL = strings.TrimSpace(b.URL)
	b.RelevanceScore = clampUnit(b.RelevanceScore)
	if b.PersonalizedScore != nil {
		p := clampUnit(*b.PersonalizedScore)
		b.PersonalizedScore = &p
	}
	b.NormalizedDate = NormalizeDate(b.Date)
}

// FormatBillNumber renders numeric-only identifiers as House bills.
func FormatBillNumber(raw string) string {
	raw = cleanText(raw)
	if isDigits(raw) {
		return "H.R. " + raw
	}
	return raw
}

// FormatSponsor builds "First Last (P-ST)" and degrades gracefully when parts are missing.
func FormatSponsor(first, last, party, state string) string {
	name := cleanText(first + " " + last)
	party = strings.TrimSpace(party)
	state = strings.TrimSpace(state)
	switch {
	case name == "":
		return models.NotAvailable
	case party != "" && state != "":
		return name + " (" + party + "-" + state + ")"
	default:
		return name
	}
}
