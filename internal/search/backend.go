// Package search holds the remote backends the aggregator pages through:
// the structured bill-search service and the free-text LLM fallback.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/bill-finder/internal/models"
)

// DefaultPerPage is the page size requested from the structured service.
const DefaultPerPage = 5

// ErrNoResults is returned when a first page carries no bills.
var ErrNoResults = errors.New("no bills found, try a different search term")

// Page is one batch of results.
type Page struct {
	Bills      []models.Bill
	HasMore    bool
	TotalFound int
	Message    string
	// Dropped counts free-text segments that lacked required fields.
	Dropped int
}

// Backend fetches a page of bills for a query.
type Backend interface {
	Search(ctx context.Context, req Request) (Page, error)
}

// Request carries the query, 1-based page and personalization hints.
type Request struct {
	Query       string
	Page        int
	PerPage     int
	AgeGroup    models.AgeGroup
	DetailLevel models.DetailLevel
}

// ServiceError is a non-2xx reply from the search service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newServiceError(status int, msg string) *ServiceError {
	if msg == "" {
		msg = fmt.Sprintf("search service returned status %d", status)
	}
	return &ServiceError{StatusCode: status, Message: msg}
}
