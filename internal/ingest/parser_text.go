package ingest

import (
	"regexp"
	"strings"

	"github.com/david/bill-finder/internal/models"
)

// SegmentDelimiter separates bill descriptions in a completion.
const SegmentDelimiter = "---"

// linePrefix tolerates decoration models put in front of a label line:
// markdown ("- ", "**", "> ") and list numbering ("1. ", "2) ").
const linePrefix = `^[ \t>#*•-]*(?:\d+[.)][ \t]*)?[ \t>#*•-]*`

var (
	billLabel    = fieldPattern("BILL")
	titleLabel   = fieldPattern("TITLE")
	sponsorLabel = fieldPattern("SPONSOR")
	statusLabel  = fieldPattern("STATUS")
	dateLabel    = fieldPattern("DATE")

	summaryStart = regexp.MustCompile(`(?im)\bSUMMARY[ \t]*\**[ \t]*:\**[ \t]*`)
	// anyLabel matches the start of the next capitalized "LABEL:" line.
	anyLabel = regexp.MustCompile(linePrefix + `[A-Z]{2,}(?: [A-Z]+)*[ \t]*\**[ \t]*:`)
	// knownLabel also ends a summary when the model lowercases our own labels.
	knownLabel = regexp.MustCompile(`(?i)` + linePrefix + `(?:BILL|TITLE|SPONSOR|STATUS|DATE|SUMMARY)[ \t]*\**[ \t]*:`)
)

// fieldPattern matches a label anywhere on a line, so "Bill 1 - BILL: S. 5" and
// "1. BILL: S. 5" both yield "S. 5". The word boundary keeps "SUBTITLE:" from
// matching TITLE.
func fieldPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)\b` + label + `[ \t]*\**[ \t]*:\**[ \t]*(.+)$`)
}

// ParseFreeText extracts bills from a completion that uses the BILL/TITLE/SUMMARY
// label format with "---" between bills. Segments missing BILL, TITLE or SUMMARY
// are dropped rather than treated as errors; the number dropped is returned so
// callers can record it. Bills come back in the order they were found.
func ParseFreeText(text string) ([]models.Bill, int) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var bills []models.Bill
	dropped := 0
	for _, segment := range strings.Split(text, SegmentDelimiter) {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		bill, ok := parseSegment(segment)
		if !ok {
			dropped++
			continue
		}
		bills = append(bills, bill)
	}
	return bills, dropped
}

// ParseAndSort is ParseFreeText followed by the authoritative date-descending sort.
// Upstream models are asked for recency order but it is never trusted.
func ParseAndSort(text string) []models.Bill {
	bills, _ := ParseFreeText(text)
	SortByDateDesc(bills)
	return bills
}

func parseSegment(segment string) (models.Bill, bool) {
	number := matchField(billLabel, segment)
	title := matchField(titleLabel, segment)
	summary := extractSummary(segment)
	if number == "" || title == "" || summary == "" {
		return models.Bill{}, false
	}

	bill := models.Bill{
		Number:  number,
		Title:   title,
		Sponsor: matchField(sponsorLabel, segment),
		Status:  matchField(statusLabel, segment),
		Date:    matchField(dateLabel, segment),
		Summary: summary,
	}
	NormalizeBill(&bill)
	return bill, true
}

func matchField(re *regexp.Regexp, segment string) string {
	m := re.FindStringSubmatch(segment)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], "* \t")
}

// extractSummary reads the SUMMARY value, which may span lines. It ends at a
// blank line, at the next capitalized label, or at the end of the segment.
func extractSummary(segment string) string {
	loc := summaryStart.FindStringIndex(segment)
	if loc == nil {
		return ""
	}

	var parts []string
	for _, line := range strings.Split(segment[loc[1]:], "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(parts) == 0 {
				continue // value starts on a later line
			}
			break
		}
		if len(parts) > 0 && (anyLabel.MatchString(line) || knownLabel.MatchString(line)) {
			break
		}
		parts = append(parts, trimmed)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
