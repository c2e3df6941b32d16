package models

import (
	"time"
)

// Sentinels used when the upstream payload leaves a field out.
const (
	NotAvailable  = "N/A"
	UnknownNumber = "Unknown"
	UntitledBill  = "Untitled Bill"
)

// Bill is the canonical bill record shared by every backend.
type Bill struct {
	Number            string    `json:"number"`
	Title             string    `json:"title"`
	Sponsor           string    `json:"sponsor"`
	Status            string    `json:"status"`
	Date              string    `json:"date"`
	Summary           string    `json:"summary"`
	RelevanceScore    float64   `json:"relevanceScore"`
	URL               string    `json:"url,omitempty"`
	PersonalizedScore *float64  `json:"personalizedScore,omitempty"`
	NormalizedDate    time.Time `json:"-"` // ordering only, never rendered
}

// SavedBill is a bookmarked bill together with the moment it was saved.
type SavedBill struct {
	Bill
	SavedAt time.Time `json:"savedAt"`
}

// BillDetail is the expanded record returned by the detail lookup.
type BillDetail struct {
	Number         string `json:"number"`
	Title          string `json:"title"`
	Sponsor        string `json:"sponsor"`
	Status         string `json:"status"`
	Date           string `json:"date"`
	Summary        string `json:"summary"`
	URL            string `json:"url,omitempty"`
	CosponsorCount int    `json:"cosponsorCount"`
}

// TimelineEvent is one step of a bill's progression through Congress.
type TimelineEvent struct {
	Date           string    `json:"date"`
	Chamber        string    `json:"chamber"`
	Action         string    `json:"action"`
	NormalizedDate time.Time `json:"-"`
}

// StateVotes holds the roll-call tally for a single state delegation.
type StateVotes struct {
	Yea       int `json:"yea"`
	Nay       int `json:"nay"`
	NotVoting int `json:"notVoting"`
}

// VoteHeatmap aggregates a roll call by state.
type VoteHeatmap struct {
	Number string                `json:"number"`
	States map[string]StateVotes `json:"states"`
	Totals StateVotes            `json:"totals"`
}
