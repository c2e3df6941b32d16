package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bill-finder/internal/models"
)

func newTestService(t *testing.T, h http.HandlerFunc) *ServiceClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewServiceClient(srv.URL, WithRateLimit(0, 0), WithRetries(0, 0))
}

func TestServiceSearch(t *testing.T) {
	var got searchBody
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search_bills", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{
			"query": "climate",
			"bills": [
				{"number": 1234, "title": "Clean Air Act", "sponsor": "Rep. A", "status": "Introduced", "date": "2024-03-01", "summary": "**Cuts** emissions", "relevance_score": 0.9, "url": "https://congress.gov/1234"},
				{"number": "S. 9", "title": "", "summary": "x"}
			],
			"has_more": true,
			"total_found": 12
		}`))
	})

	page, err := c.Search(context.Background(), Request{
		Query:       "climate",
		Page:        2,
		AgeGroup:    models.AgeTeen,
		DetailLevel: models.DetailBrief,
	})
	require.NoError(t, err)

	assert.Equal(t, searchBody{Query: "climate", Page: 2, PerPage: DefaultPerPage, AgeGroup: "teen", DetailLevel: "brief"}, got)
	assert.True(t, page.HasMore)
	assert.Equal(t, 12, page.TotalFound)
	require.Len(t, page.Bills, 2)
	assert.Equal(t, "H.R. 1234", page.Bills[0].Number)
	assert.Equal(t, "Cuts emissions", page.Bills[0].Summary)
	assert.InDelta(t, 0.9, page.Bills[0].RelevanceScore, 1e-9)
	assert.Equal(t, "S. 9", page.Bills[1].Number)
	assert.Equal(t, models.UntitledBill, page.Bills[1].Title)
	assert.Equal(t, models.NotAvailable, page.Bills[1].Sponsor)
}

func TestServiceSearch_ErrorBody(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusServiceUnavailable, `{"error":"Unable to fetch bills from Congress API"}`, "Unable to fetch bills from Congress API"},
		{"no body", http.StatusInternalServerError, ``, "search service returned status 500"},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, "search service returned status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Search(context.Background(), Request{Query: "x"})

			var se *ServiceError
			require.True(t, errors.As(err, &se), "want *ServiceError, got %v", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantMsg, se.Error())
		})
	}
}

func TestServiceSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"bills":[{"number":"S. 1","title":"One"}],"has_more":false}`))
	}))
	t.Cleanup(srv.Close)
	c := NewServiceClient(srv.URL, WithRateLimit(0, 0), WithRetries(2, time.Millisecond))

	page, err := c.Search(context.Background(), Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, page.Bills, 1)
}

func TestServiceSearch_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Query parameter is required"}`))
	}))
	t.Cleanup(srv.Close)
	c := NewServiceClient(srv.URL, WithRateLimit(0, 0), WithRetries(3, time.Millisecond))

	_, err := c.Search(context.Background(), Request{Query: "x"})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestServiceAuxiliary(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var body billNumberBody
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "42", body.BillNumber)
		}
		switch r.URL.Path {
		case "/bill_details":
			w.Write([]byte(`{"title":"Farm Bill","sponsors":[{"firstName":"Jane","lastName":"Doe","party":"D","state":"CA"}],"summary":"<p>Helps <b>farms</b>.</p>","cosponsors_count":3}`))
		case "/bill_progression":
			w.Write([]byte(`{"actions":[{"date":"2024-05-01","chamber":"Senate","action":"Passed"},{"date":"2024-01-10","chamber":"House","action":"Introduced"}]}`))
		case "/voting_heatmap":
			w.Write([]byte(`{"votes":[{"state":"ca","position":"Yea"},{"state":"TX","position":"Nay"},{"state":"CA","position":"Not Voting"}]}`))
		case "/health":
			w.Write([]byte(`{"status":"healthy"}`))
		case "/models_ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"ready":false,"status":"Models not ready: loading"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	detail, err := c.Detail(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "H.R. 42", detail.Number)
	assert.Equal(t, "Jane Doe (D-CA)", detail.Sponsor)
	assert.Equal(t, "Helps farms.", detail.Summary)
	assert.Equal(t, 3, detail.CosponsorCount)

	timeline, err := c.Progression(ctx, "42")
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "Introduced", timeline[0].Action)

	hm, err := c.Heatmap(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.StateVotes{Yea: 1, NotVoting: 1}, hm.States["CA"])
	assert.Equal(t, 1, hm.Totals.Nay)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Healthy)
	assert.False(t, st.ModelsReady)
	assert.Contains(t, st.Message, "loading")
}

func TestServiceSearch_ContextCancelled(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, Request{Query: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
