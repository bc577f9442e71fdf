package verifier

import (
	"context"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/buildurl"
	"github.com/unbasical/update-agent/internal/pkg/utils/funcutils"
	"github.com/unbasical/update-agent/pkg/client/updater/updatefinder"
)

// maxChecksumBytes limits how much of a checksum file is read.
const maxChecksumBytes = 4096

var (
	ErrChecksumUnavailable = errors.New("checksum unavailable")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
)

// ArtifactVerifier ensures update integrity before applying.
type ArtifactVerifier interface {
	VerifyArtifact(ctx context.Context, version, artifactPath string) error
}

// ChecksumVerifier compares a downloaded artifact with a published checksum.
type ChecksumVerifier struct {
	urlTemplate string
	client      *http.Client
}

// NewChecksumVerifier creates a verifier which downloads the checksum from urlTemplate.
func NewChecksumVerifier(urlTemplate string, timeout time.Duration) *ChecksumVerifier {
	return &ChecksumVerifier{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *ChecksumVerifier) VerifyArtifact(ctx context.Context, version, artifactPath string) error {
	checksumURL, err := buildurl.Expand(c.urlTemplate, version)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	expected, err := c.fetchDigest(ctx, checksumURL)
	if err != nil {
		return err
	}
	return VerifyFile(artifactPath, expected)
}

func (c *ChecksumVerifier) fetchDigest(ctx context.Context, checksumURL string) (digest.Digest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	req.Header.Set("User-Agent", updatefinder.UserAgent())
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	defer funcutils.PanicOrLogOnErr(resp.Body.Close, false, "failed to close response body")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected HTTP status: %s", ErrChecksumUnavailable, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	d, err := ParseChecksum(string(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChecksumUnavailable, err)
	}
	log.Debugf("expected digest of the artifact: %s", d)
	return d, nil
}

// ParseChecksum accepts "<algo>:<hex>", a bare sha256 hex string or a line in sha256sum format.
func ParseChecksum(s string) (digest.Digest, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", errors.New("empty checksum")
	}
	first := fields[0]
	if strings.Contains(first, ":") {
		return digest.Parse(first)
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(first))
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

// VerifyFile hashes the file at path and compares it with expected.
func VerifyFile(path string, expected digest.Digest) error {
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer funcutils.PanicOrLogOnErr(fp.Close, false, "failed to close artifact")
	if !expected.Algorithm().Available() {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrChecksumUnavailable, expected.Algorithm())
	}
	v := expected.Verifier()
	digester := expected.Algorithm().Digester()
	if _, err := io.Copy(io.MultiWriter(v, digester.Hash()), fp); err != nil {
		return err
	}
	if !v.Verified() {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, digester.Digest())
	}
	return nil
}
