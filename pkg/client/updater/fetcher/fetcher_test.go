package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unbasical/update-agent/internal/pkg/utils/logutils"
	"github.com/unbasical/update-agent/pkg/client/updater/inspector"
)

func packageServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/app_2.0.0.zip", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing user agent")
		}
		_, _ = w.Write(content)
	})
	mux.HandleFunc("/slow/app_2.0.0.zip", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	logutils.SetupTestLogging()
	content := bytes.Repeat([]byte("zip"), 1024)
	srv := packageServer(t, content)
	dir := filepath.Join(t.TempDir(), "downloads")
	f := NewHTTPFetcher(
		srv.URL+"/releases/app_{version}.zip",
		dir,
		WithInspector(inspector.NewDownloadStatsObserver("app", time.Millisecond)),
	)
	got, err := f.Fetch(context.Background(), "2.0.0")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := filepath.Join(dir, "app_2.0.0.zip")
	if got.Path != want {
		t.Errorf("Fetch() path = %q, want %q", got.Path, want)
	}
	if got.Size != int64(len(content)) || got.Version != "2.0.0" {
		t.Errorf("Fetch() = %+v", got)
	}
	data, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Error("downloaded content differs from served content")
	}
}

func TestHTTPFetcher_FetchErrors(t *testing.T) {
	logutils.SetupTestLogging()
	srv := packageServer(t, []byte("zip"))
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		template string
		version  string
		timeout  time.Duration
		wantErr  error
	}{
		{name: "not found", template: srv.URL + "/missing/app_{version}.zip", version: "2.0.0", wantErr: ErrHTTPStatus},
		{name: "connection refused", template: closedURL + "/app_{version}.zip", version: "2.0.0", wantErr: ErrConnection},
		{name: "timeout", template: srv.URL + "/slow/app_{version}.zip", version: "2.0.0", timeout: 100 * time.Millisecond, wantErr: ErrTimeout},
		{name: "empty version", template: srv.URL + "/releases/app_{version}.zip", version: "", wantErr: ErrUnexpected},
		{name: "no file name", template: srv.URL + "/", version: "2.0.0", wantErr: ErrUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewHTTPFetcher(tt.template, t.TempDir(), WithTimeout(tt.timeout))
			got, err := f.Fetch(context.Background(), tt.version)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if got != (Artifact{}) {
				t.Errorf("Fetch() artifact = %+v, want empty", got)
			}
		})
	}
}

func TestHTTPFetcher_FetchPlaceholders(t *testing.T) {
	srv := packageServer(t, []byte("zip"))
	for _, template := range []string{
		srv.URL + "/releases/app_{0}.zip",
		srv.URL + "/releases/app_%version.zip",
	} {
		f := NewHTTPFetcher(template, t.TempDir())
		if _, err := f.Fetch(context.Background(), "2.0.0"); err != nil {
			t.Errorf("Fetch(%q) error = %v", template, err)
		}
	}
}
