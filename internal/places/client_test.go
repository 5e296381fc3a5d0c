package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/iae-bsb/iae-bot/internal/models"
)

func TestNearbySearchQueriesEveryVenueType(t *testing.T) {
	var mu sync.Mutex
	var typesQueried []string
	responses := map[string]string{
		"bar":        `{"status":"OK","results":[{"place_id":"p1","name":"Bar A","types":["bar"]},{"place_id":"p2","name":"Pub B","types":["bar","pub"]}]}`,
		"pub":        `{"status":"OK","results":[{"place_id":"p2","name":"Pub B","types":["bar","pub"]},{"place_id":"p3","name":"Pub C","types":["pub"]}]}`,
		"night_club": `{"status":"ZERO_RESULTS","results":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/nearbysearch/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("radius") != "5000" {
			t.Errorf("radius = %q, want 5000", q.Get("radius"))
		}
		if q.Get("keyword") != "chopp" {
			t.Errorf("keyword = %q, want chopp", q.Get("keyword"))
		}
		mu.Lock()
		typesQueried = append(typesQueried, q.Get("type"))
		mu.Unlock()
		w.Write([]byte(responses[q.Get("type")]))
	}))
	defer srv.Close()

	c, err := NewClient(WithAPIKey("test"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	got, err := c.NearbySearch(context.Background(), -15.79, -47.88, models.VenueBar, models.SearchOptions{Keyword: "chopp"})
	if err != nil {
		t.Fatalf("NearbySearch() error: %v", err)
	}

	want := map[string]bool{"bar": true, "pub": true, "night_club": true}
	for _, ty := range typesQueried {
		delete(want, ty)
	}
	for ty := range want {
		t.Errorf("provider type %q was never queried", ty)
	}

	// p2 comes back from both the bar and pub queries; the merge must keep
	// one copy of each place.
	if len(got) != 3 {
		t.Fatalf("NearbySearch() returned %d places, want 3 deduped", len(got))
	}
	seen := map[string]int{}
	for _, p := range got {
		seen[p.PlaceID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("place %s appears %d times after merge", id, n)
		}
	}
}

func TestNearbySearchDeniedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(WithAPIKey("test"), WithBaseURL(srv.URL))
	if _, err := c.NearbySearch(context.Background(), 0, 0, models.VenueBar, models.SearchOptions{}); err == nil {
		t.Error("NearbySearch() expected error for REQUEST_DENIED status")
	}
}

func TestDetailsCaching(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"OK","result":{"name":"Bar A","formatted_address":"Rua 1"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(WithAPIKey("test"), WithBaseURL(srv.URL))
	for i := 0; i < 3; i++ {
		d, err := c.Details(context.Background(), "p1")
		if err != nil {
			t.Fatalf("Details() error: %v", err)
		}
		if d.Name != "Bar A" {
			t.Errorf("Details().Name = %q, want Bar A", d.Name)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("backend hit %d times, want 1 (cached)", got)
	}
}

func TestFindPlaceZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","candidates":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(WithAPIKey("test"), WithBaseURL(srv.URL))
	got, err := c.FindPlace(context.Background(), "bar inexistente")
	if err != nil {
		t.Fatalf("FindPlace() error: %v", err)
	}
	if got != nil {
		t.Errorf("FindPlace() = %+v, want nil for zero results", got)
	}
}
