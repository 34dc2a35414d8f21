package bnci2014001

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

func testLogger() log.Interface {
	return &log.Logger{Handler: discard.New()}
}

func sessionServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	src := t.TempDir()
	writeSyntheticSession(t, src, 1, "T")
	writeSyntheticSession(t, src, 1, "E")
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.ServeFile(w, r, filepath.Join(src, path.Base(r.URL.Path)))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoadOrFetch(t *testing.T) {
	srv, hits := sessionServer(t)
	dir := t.TempDir()
	ctx := context.Background()

	raws, err := LoadOrFetch(ctx, dir, srv.URL, []int{1}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 2 {
		t.Fatalf("loaded %d sessions", len(raws))
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("empty cache fetched %d files, want 2", got)
	}

	// A complete cache is served without touching the network.
	if _, err := LoadOrFetch(ctx, dir, srv.URL, []int{1}, testLogger()); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("cached load fetched %d more files", got-2)
	}

	// Only the missing session of a partial cache is re-fetched.
	if err := os.Remove(filepath.Join(dir, SessionFile(1, "E"))); err != nil {
		t.Fatal(err)
	}
	raws, err = LoadOrFetch(ctx, dir, srv.URL, []int{1}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 2 {
		t.Fatalf("loaded %d sessions after resume", len(raws))
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("partial cache fetched %d files, want 1", got-2)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	dir := t.TempDir()
	if err := Fetch(context.Background(), dir, srv.URL, []int{1}, testLogger()); err == nil {
		t.Fatal("expected an error for a missing remote file")
	}
	// A failed download must not leave a file behind that Cached would count.
	if _, err := os.Stat(filepath.Join(dir, SessionFile(1, "T"))); err == nil {
		t.Error("failed fetch left a session file")
	}
}
