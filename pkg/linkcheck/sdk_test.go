package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/missing">broken</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var mu sync.Mutex
	var results []*Result
	lc := New(
		WithThreads(0),
		OnResult(func(r *Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)
	lc.cfg.Checking.RobotsTxt = false

	summary, err := lc.Check(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}
	if summary.URLsChecked != 2 {
		t.Errorf("URLs checked = %d, want 2", summary.URLsChecked)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("callback saw %d results, want 2", len(results))
	}
	foundBroken := false
	for _, r := range results {
		if r.URL == srv.URL+"/missing" && !r.Valid {
			foundBroken = true
		}
	}
	if !foundBroken {
		t.Error("broken link not reported to callback")
	}
}

func TestCheckNoSeeds(t *testing.T) {
	if _, err := New().Check(context.Background()); err == nil {
		t.Fatal("want error without seeds")
	}
}
