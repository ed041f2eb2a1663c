// Package releases implements the HTTP release source used by the update
// scheduler. A JSON manifest describes the newest build; artifacts are
// downloaded into a staging directory and recorded in a marker file that the
// installer picks up on the next restart.
package releases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/caesay/osu/client/internal/updater"
	"github.com/caesay/osu/version"
)

const (
	userAgent     = "osu client updater/%s"
	manifestLimit = 64 * 1024
	fetchRetries  = 2
)

// ErrIntegrity is returned when a downloaded artifact does not match the
// checksum announced in the manifest.
var ErrIntegrity = errors.New("artifact checksum mismatch")

// Manifest is the document served by the release endpoint.
type Manifest struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size"`
}

// Source talks to an HTTP release endpoint and stages downloaded builds on
// disk. It implements updater.ReleaseSource.
type Source struct {
	manifestURL string
	stagingDir  string
	client      *http.Client

	// replaced in tests
	newBackOff   func() backoff.BackOff
	startProcess func(name string, args ...string) error

	mu      sync.Mutex
	pending *Manifest
}

func NewSource(manifestURL, stagingDir string) *Source {
	return &Source{
		manifestURL:  manifestURL,
		stagingDir:   stagingDir,
		client:       http.DefaultClient,
		newBackOff:   func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		startProcess: startDetached,
	}
}

// QueryLatest fetches the release manifest and compares it against the
// running version. A nil release means nothing newer is available.
// Development builds carry no comparable version and never self-update.
func (s *Source) QueryLatest(ctx context.Context, currentVersion string) (*updater.Release, error) {
	manifest, err := s.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := goversion.NewVersion(manifest.Version)
	if err != nil {
		return nil, fmt.Errorf("parse manifest version %q: %w", manifest.Version, err)
	}

	current, err := goversion.NewVersion(currentVersion)
	if err != nil {
		log.Debugf("not checking for updates, version %q is not comparable", currentVersion)
		return nil, nil
	}

	if !latest.GreaterThan(current) {
		return nil, nil
	}

	s.mu.Lock()
	s.pending = manifest
	s.mu.Unlock()

	return &updater.Release{Version: manifest.Version, Artifact: manifest.URL}, nil
}

// Fetch downloads the release artifact into the staging directory, verifies
// its checksum and records the staged-update marker. Transient download
// faults are retried with exponential backoff before the cycle is failed.
func (s *Source) Fetch(ctx context.Context, release *updater.Release, progress updater.ProgressFunc) error {
	s.mu.Lock()
	manifest := s.pending
	s.mu.Unlock()
	if manifest == nil || manifest.Version != release.Version {
		return fmt.Errorf("no manifest for release %s, query it first", release.Version)
	}

	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir %q: %w", s.stagingDir, err)
	}

	dst := filepath.Join(s.stagingDir, artifactFileName(manifest))
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create staging file %q: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Warnf("error closing staging file %q: %v", dst, cerr)
		}
	}()

	attempt := func() error {
		if err := out.Truncate(0); err != nil {
			return backoff.Permanent(fmt.Errorf("truncate staging file: %w", err))
		}
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(fmt.Errorf("rewind staging file: %w", err))
		}

		digest, err := s.downloadOnce(ctx, manifest, out, progress)
		if err != nil {
			return err
		}
		if !strings.EqualFold(digest, manifest.SHA256) {
			return fmt.Errorf("%w: got %s, want %s", ErrIntegrity, digest, manifest.SHA256)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), fetchRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			log.Warnf("failed to remove partial artifact %q: %v", dst, rmErr)
		}
		return fmt.Errorf("download release %s: %w", release.Version, err)
	}

	staged := stagedUpdate{
		Version:  manifest.Version,
		Path:     dst,
		SHA256:   manifest.SHA256,
		StagedAt: time.Now().UTC(),
	}
	if err := s.writeMarker(staged); err != nil {
		return fmt.Errorf("record staged release %s: %w", release.Version, err)
	}

	log.Infof("release %s staged at %s", manifest.Version, dst)
	return nil
}

func (s *Source) fetchManifest(ctx context.Context) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create manifest request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.ClientVersion()))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release manifest: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch release manifest: unexpected HTTP status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, manifestLimit))
	if err != nil {
		return nil, fmt.Errorf("read release manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode release manifest: %w", err)
	}

	return &manifest, nil
}

// downloadOnce streams the artifact into out, reporting percent progress from
// the response length, and returns the hex digest of the received bytes.
func (s *Source) downloadOnce(ctx context.Context, manifest *Manifest, out *os.File, progress updater.ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifest.URL, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create download request: %w", err))
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.ClientVersion()))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download artifact: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download artifact: unexpected HTTP status: %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = manifest.Size
	}

	hash := sha256.New()
	body := io.TeeReader(resp.Body, hash)
	buf := make([]byte, 32*1024)
	var done int64

	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			if _, werr := out.Write(buf[:nr]); werr != nil {
				return "", backoff.Permanent(fmt.Errorf("write artifact: %w", werr))
			}
			done += int64(nr)
			if progress != nil && total > 0 {
				progress(float64(done) / float64(total) * 100)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("read artifact: %w", rerr)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func artifactFileName(manifest *Manifest) string {
	name := path.Base(manifest.URL)
	if name == "." || name == "/" || name == "" {
		name = fmt.Sprintf("osu-%s.bin", manifest.Version)
	}
	return name
}
