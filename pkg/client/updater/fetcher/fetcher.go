package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/buildurl"
	"github.com/unbasical/update-agent/internal/pkg/utils/funcutils"
	"github.com/unbasical/update-agent/internal/pkg/utils/writerutils"
	"github.com/unbasical/update-agent/pkg/client/updater/inspector"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
)

// DefaultTimeout bounds a whole download including reading the body.
const DefaultTimeout = 30 * time.Second

var (
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("download timed out")
	ErrUnexpected = errors.New("unexpected download error")
)

// Artifact is a downloaded update package.
type Artifact struct {
	Version string
	URL     string
	Path    string
	Size    int64
}

// PackageFetcher downloads the update package of a version.
type PackageFetcher interface {
	// Fetch downloads the package of version into the download folder.
	// On failure the returned Artifact is empty.
	Fetch(ctx context.Context, version string) (Artifact, error)
}

type httpFetcher struct {
	urlTemplate string
	downloadDir string
	client      *http.Client
	inspector   inspector.ContentInspector
}

// WithTimeout sets the timeout of a whole download.
func WithTimeout(timeout time.Duration) func(*httpFetcher) {
	return func(f *httpFetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithInspector passes every response body through i.
func WithInspector(i inspector.ContentInspector) func(*httpFetcher) {
	return func(f *httpFetcher) {
		f.inspector = i
	}
}

// NewHTTPFetcher creates a PackageFetcher which downloads from urlTemplate into downloadDir.
func NewHTTPFetcher(urlTemplate, downloadDir string, options ...func(*httpFetcher)) PackageFetcher {
	f := &httpFetcher{
		urlTemplate: urlTemplate,
		downloadDir: downloadDir,
		client:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *httpFetcher) Fetch(ctx context.Context, version string) (Artifact, error) {
	artifact, err := f.fetch(ctx, version)
	if err != nil {
		return Artifact{}, err
	}
	return artifact, nil
}

func (f *httpFetcher) fetch(ctx context.Context, version string) (Artifact, error) {
	packageURL, err := buildurl.Expand(f.urlTemplate, version)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	name, err := buildurl.FileName(packageURL)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	if err := os.MkdirAll(f.downloadDir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("%w: failed to create download folder: %w", ErrUnexpected, err)
	}
	target := filepath.Join(f.downloadDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, packageURL, nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	req.Header.Set("User-Agent", updatefinder.UserAgent())
	log.WithField("url", packageURL).Infof("downloading package to %q", target)
	resp, err := f.client.Do(req)
	if err != nil {
		return Artifact{}, classifyTransportError(err)
	}
	defer funcutils.PanicOrLogOnErr(resp.Body.Close, false, "failed to close response body")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Artifact{}, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	var body io.ReadCloser = resp.Body
	if f.inspector != nil {
		body, err = f.inspector.InspectContents(resp.Body, resp.ContentLength)
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
		}
		defer funcutils.PanicOrLogOnErr(body.Close, false, "failed to close inspected body")
	}

	size, err := writeBody(target, body)
	if err != nil {
		return Artifact{}, err
	}
	log.WithField("url", packageURL).Infof("downloaded %d bytes to %q", size, target)
	return Artifact{
		Version: version,
		URL:     packageURL,
		Path:    target,
		Size:    size,
	}, nil
}

// writeBody streams body into a new file at target which is synced before it is closed.
func writeBody(target string, body io.Reader) (n int64, err error) {
	fp, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	w := writerutils.NewSafeFileWriter(fp)
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrUnexpected, closeErr)
		}
	}()
	r := &recordingReader{r: body}
	n, err = io.Copy(w, r)
	if err != nil {
		if r.err != nil {
			return n, classifyTransportError(r.err)
		}
		return n, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return n, nil
}

// recordingReader remembers the last read error so network and disk failures can be told apart.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return n, err
}

func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &netErr), isURLError(err), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
}

func isURLError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
