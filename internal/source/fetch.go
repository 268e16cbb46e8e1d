package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "racecal/internal/log"
)

// cacheEntry holds HTTP cache metadata for the events URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves the events document from a local file or an HTTP
// URL. HTTP retrieval honors ETag / Last-Modified against a disk cache
// and falls back to the cached body when the network is unavailable.
type Fetcher struct {
	client   *http.Client
	url      string
	path     string
	cacheDir string
}

// NewFetcher creates a Fetcher. Exactly one of url and path should be
// set; when both are, the local path wins.
func NewFetcher(url, path, cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		url:      url,
		path:     path,
		cacheDir: cacheDir,
	}
}

// Load retrieves and decodes the events document. A retrieval failure
// and a malformed document surface as the same single error; callers do
// not distinguish them.
func (f *Fetcher) Load(ctx context.Context) (Snapshot, error) {
	if f.path != "" {
		body, err := os.ReadFile(f.path)
		if err != nil {
			return Snapshot{}, err
		}
		appLog.Debug("events loaded from file", "path", f.path, "bytes", len(body))
		return DecodeDocument(body)
	}
	if f.url == "" {
		return Snapshot{}, errors.New("no events source configured")
	}

	body, fromCache, err := f.fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := DecodeDocument(body)
	if err != nil {
		return Snapshot{}, err
	}
	snap.FromCache = fromCache
	return snap, nil
}

// fetch performs a conditional GET against f.url using the disk cache
// under f.cacheDir.
func (f *Fetcher) fetch(ctx context.Context) ([]byte, bool, error) {
	cachePath := f.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("events fetch start", "url", f.url)

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("events fetch network error, using cached body", err, "url", f.url)
			return cachedBody, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, readErr
		}

		newMeta := cacheEntry{
			URL:          f.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("events cache save failed", err, "url", f.url)
		}

		appLog.Info("events fetch success", "url", f.url, "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("events not modified; using cache", "url", f.url)
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("events fetch non-OK, using cached body", errors.New(resp.Status), "url", f.url, "status", resp.StatusCode)
			return cachedBody, true, nil
		}
		return nil, false, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePath() string {
	sum := sha256.Sum256([]byte(f.url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
