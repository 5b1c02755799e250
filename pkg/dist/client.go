package dist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// maxAttempts bounds the retry policy for server errors and transient
// network failures (spec.md §4.7 "retry with exponential backoff up to
// three attempts").
const maxAttempts = 3

// Client fetches manifests and component archives from a distribution
// server, applying the retry policy of spec.md §4.7.
type Client struct {
	HTTP        *http.Client
	ShowProgress bool
}

// NewClient builds a Client whose single timeout, chosen by the caller,
// applies to every request it makes; requests have no priority-specific
// timeouts.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// FetchText downloads a small text artifact (a manifest body or a sha256
// sidecar), applying the retry policy but not streaming to disk.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	data, err := c.fetchBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// doWithRetry issues a GET, applying spec.md §4.7's classification:
// 4xx (other than absent here, this path has no range requests so 416
// does not arise) fail immediately as download-not-exists; 5xx and
// transient network errors retry with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		if isServerSide(resp.StatusCode) {
			lastErr = fmt.Errorf("server error %d fetching %s", resp.StatusCode, url)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
			continue
		}
		return nil, rustuperr.DownloadNotExists(url)
	}
	return nil, rustuperr.DownloadTransient(url, lastErr)
}

// isServerSide reports whether status should be retried rather than
// treated as "the resource does not exist". 416 (bad range) is explicitly
// server-side per spec.md §4.7 so partial-download cleanup does not
// misclassify a malformed range request as a missing artifact.
func isServerSide(status int) bool {
	return status >= 500 || status == http.StatusRequestedRangeNotSatisfiable
}

// DownloadToFile retrieves url into destPath, verifying the streamed
// content against expectedHashHex as it writes (spec.md §4.6 step 1
// "compute SHA-256 streamingly; compare to the manifest's hash"). On
// mismatch the partial file is removed and checksum-failed is returned.
func (c *Client) DownloadToFile(ctx context.Context, url, destPath, expectedHashHex string) error {
	resp, err := c.doWithRetry(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotCreate, destPath, err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotCreate, destPath, err)
	}

	hasher := newHashingWriter(out)
	var reader io.Reader = resp.Body
	if c.ShowProgress {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", url)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
		)
		reader = io.TeeReader(resp.Body, bar)
	}

	_, copyErr := io.Copy(hasher, reader)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(destPath)
		return rustuperr.WrapOSError(rustuperr.KindCannotWrite, destPath, copyErr)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return rustuperr.WrapOSError(rustuperr.KindCannotWrite, destPath, closeErr)
	}

	actual := hasher.sumHex()
	if expectedHashHex != "" && actual != expectedHashHex {
		os.Remove(destPath)
		return rustuperr.ChecksumFailed(url, expectedHashHex, actual)
	}
	return nil
}

