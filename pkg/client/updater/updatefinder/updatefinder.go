package updatefinder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/common"
	"github.com/unbasical/update-agent/internal/pkg/utils/fileutils"
	"github.com/unbasical/update-agent/internal/pkg/utils/funcutils"
	"github.com/unbasical/update-agent/pkg/client/updater/versioncompare"
)

// maxVersionBytes limits how much of the version endpoint's response is read.
const maxVersionBytes = 1024

// ErrRemoteVersionUnavailable is returned when the version endpoint does not yield a version.
var ErrRemoteVersionUnavailable = errors.New("remote version unavailable")

// UserAgent is sent with every request of the agent.
func UserAgent() string {
	return fmt.Sprintf("update-agent/%s", common.Version())
}

// UpdateFinder resolves the installed version and the newest version that is available.
type UpdateFinder interface {
	// LocalVersion returns the installed version or versioncompare.Sentinel if it is unknown.
	LocalVersion() string
	// RemoteVersion returns the newest available version or versioncompare.Sentinel if it could not be determined.
	RemoteVersion(ctx context.Context) string
}

type httpFinder struct {
	remoteURL  string
	markerPath string
	client     *http.Client
}

// NewHTTPFinder creates an UpdateFinder which reads the installed version from the marker file at markerPath
// and requests the available version from remoteURL. Requests give up after timeout.
func NewHTTPFinder(remoteURL, markerPath string, timeout time.Duration) UpdateFinder {
	return &httpFinder{
		remoteURL:  remoteURL,
		markerPath: markerPath,
		client:     &http.Client{Timeout: timeout},
	}
}

func (h *httpFinder) LocalVersion() string {
	v, err := ReadMarker(h.markerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infof("no version marker found at %q", h.markerPath)
		} else {
			log.WithError(err).Warnf("failed to read version marker %q", h.markerPath)
		}
		return versioncompare.Sentinel
	}
	if v == "" {
		log.Warnf("version marker %q is empty", h.markerPath)
		return versioncompare.Sentinel
	}
	log.Debugf("installed version: %q", v)
	return v
}

func (h *httpFinder) RemoteVersion(ctx context.Context) string {
	v, err := FetchVersion(ctx, h.client, h.remoteURL)
	if err != nil {
		log.WithError(err).Errorf("failed to determine the remote version")
		return versioncompare.Sentinel
	}
	log.Debugf("remote version: %q", v)
	return v
}

// FetchVersion requests url and returns the trimmed response body.
// Every failure is reported as ErrRemoteVersionUnavailable.
func FetchVersion(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteVersionUnavailable, err)
	}
	req.Header.Set("User-Agent", UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteVersionUnavailable, err)
	}
	defer funcutils.PanicOrLogOnErr(resp.Body.Close, false, "failed to close response body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected HTTP status: %s", ErrRemoteVersionUnavailable, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVersionBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteVersionUnavailable, err)
	}
	if len(data) > maxVersionBytes {
		return "", fmt.Errorf("%w: response exceeds %d bytes", ErrRemoteVersionUnavailable, maxVersionBytes)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%w: empty response", ErrRemoteVersionUnavailable)
	}
	return v, nil
}

// ReadMarker returns the trimmed content of the version marker at path.
func ReadMarker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteMarker replaces the version marker at path with version, creating missing parent directories.
func WriteMarker(path, version string) error {
	return fileutils.SafeWriteFile(path, []byte(version), 0644)
}
