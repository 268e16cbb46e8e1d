package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "generatedAt": "2024-02-01T06:00:00+08:00",
  "events": [
    {
      "name": "臺北馬拉松",
      "raceDate": "2024-03-10",
      "registrationDeadline": "2024-02-15",
      "location": "台北",
      "registrationOpen": true,
      "website": "https://example.com/taipei",
      "source": "iRunner"
    },
    {
      "name": "高雄富邦馬拉松",
      "raceDate": "2024-05-01",
      "registrationDeadline": "",
      "location": "高雄",
      "registrationOpen": false,
      "website": "https://example.com/kaohsiung",
      "source": "跑步筆記"
    }
  ]
}`

func TestDecodeDocument(t *testing.T) {
	snap, err := DecodeDocument([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "2024-02-01T06:00:00+08:00", snap.GeneratedAt)
	require.Len(t, snap.Events, 2)

	first := snap.Events[0]
	assert.Equal(t, "臺北馬拉松", first.Name)
	assert.True(t, first.RaceDate.Valid)
	assert.Equal(t, "2024-03-10", first.RaceDate.String())
	assert.True(t, first.RegistrationOpen)

	second := snap.Events[1]
	assert.False(t, second.RegistrationDeadline.Valid)
	assert.Equal(t, "", second.RegistrationDeadline.Raw)
}

func TestDecodeDocumentMalformedDateKeptVerbatim(t *testing.T) {
	doc := `{"events": [{"name": "x", "location": "台中", "raceDate": "三月某日"}]}`
	snap, err := DecodeDocument([]byte(doc))
	require.NoError(t, err)
	require.Len(t, snap.Events, 1)
	assert.False(t, snap.Events[0].RaceDate.Valid)
	assert.Equal(t, "三月某日", snap.Events[0].RaceDate.Raw)
}

func TestDecodeDocumentDedupe(t *testing.T) {
	doc := `{"events": [
      {"name": "a", "location": "台北", "raceDate": "2024-03-10"},
      {"name": "a", "location": "台北", "raceDate": "2024-03-10"},
      {"name": "a", "location": "高雄", "raceDate": "2024-03-10"}
    ]}`
	snap, err := DecodeDocument([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, snap.Events, 2)
}

func TestDecodeDocumentSkipsIncompleteRecords(t *testing.T) {
	doc := `{"events": [
      {"name": "", "location": "台北"},
      {"name": "b", "location": ""},
      {"name": "c", "location": "台北"}
    ]}`
	snap, err := DecodeDocument([]byte(doc))
	require.NoError(t, err)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "c", snap.Events[0].Name)
}

func TestDecodeDocumentFailures(t *testing.T) {
	_, err := DecodeDocument(nil)
	assert.Error(t, err)

	_, err = DecodeDocument([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeDocument([]byte(`{"generatedAt": "x"}`))
	assert.Error(t, err, "document without events field is a load failure")
}

func TestFetcherLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))

	f := NewFetcher("", path, dir)
	snap, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Events, 2)
	assert.False(t, snap.FromCache)
}

func TestFetcherLoadFromFileMissing(t *testing.T) {
	f := NewFetcher("", filepath.Join(t.TempDir(), "nope.json"), t.TempDir())
	_, err := f.Load(context.Background())
	assert.Error(t, err)
}

func TestFetcherConditionalGet(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "", t.TempDir())

	snap, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.FromCache)

	// Second load hits the conditional path and reuses the cached body.
	snap, err = f.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.FromCache)
	assert.Len(t, snap.Events, 2)
	assert.Equal(t, 2, requests)
}

func TestFetcherNetworkFailureFallsBackToCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleDoc))
	}))

	cacheDir := t.TempDir()
	f := NewFetcher(srv.URL, "", cacheDir)

	_, err := f.Load(context.Background())
	require.NoError(t, err)

	// Kill the server; the cached body must still satisfy the load.
	srv.Close()
	snap, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.FromCache)
	assert.Len(t, snap.Events, 2)
}

func TestFetcherNoSourceConfigured(t *testing.T) {
	f := NewFetcher("", "", t.TempDir())
	_, err := f.Load(context.Background())
	assert.Error(t, err)
}
