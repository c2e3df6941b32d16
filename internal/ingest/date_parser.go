package ingest

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/david/bill-finder/internal/models"
)

var (
	usDateRegex  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDateRegex = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	yearRegex    = regexp.MustCompile(`(\d{4})`)
)

// EpochOrigin is what unparseable dates normalize to. It sorts before every real date.
var EpochOrigin = time.Unix(0, 0).UTC()

// NormalizeDate turns a loosely formatted date string into an orderable time.
// It tries M/D/YYYY, then YYYY-M-D, then a bare year, and falls back to EpochOrigin.
// It never fails: upstream dates are AI generated and must not break the pipeline.
func NormalizeDate(text string) time.Time {
	if m := usDateRegex.FindStringSubmatch(text); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := isoDateRegex.FindStringSubmatch(text); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}
	if m := yearRegex.FindStringSubmatch(text); m != nil {
		return calendarDate(m[1], "1", "1")
	}
	return EpochOrigin
}

// calendarDate builds a UTC midnight. Out-of-range month/day roll over like time.Date does.
func calendarDate(year, month, day string) time.Time {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// SortMode selects the ordering applied to a result list.
type SortMode string

const (
	SortByDate      SortMode = "date"
	SortByRelevance SortMode = "relevance"
)

// ParseSortMode maps user input onto a SortMode, defaulting to date order.
func ParseSortMode(s string) SortMode {
	if SortMode(s) == SortByRelevance {
		return SortByRelevance
	}
	return SortByDate
}

// SortByDateDesc orders bills most recent first. The sort is stable, so sorting twice is a no-op.
func SortByDateDesc(bills []models.Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].NormalizedDate.After(bills[j].NormalizedDate)
	})
}

// SortByRelevanceDesc orders bills by relevance score, breaking ties by date.
func SortByRelevanceDesc(bills []models.Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if bills[i].RelevanceScore != bills[j].RelevanceScore {
			return bills[i].RelevanceScore > bills[j].RelevanceScore
		}
		return bills[i].NormalizedDate.After(bills[j].NormalizedDate)
	})
}

// SortBills sorts in place according to mode.
func SortBills(bills []models.Bill, mode SortMode) {
	if mode == SortByRelevance {
		SortByRelevanceDesc(bills)
		return
	}
	SortByDateDesc(bills)
}
