package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockServer struct {
	Files    map[string][]byte
	Headers  map[string]string
	Requests []string
	Server   *httptest.Server
}

func (m *mockServer) handler(w http.ResponseWriter, r *http.Request) {
	m.Requests = append(m.Requests, r.URL.Path)
	if r.Header.Get("X-Api-Key") == "wrong" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	body, found := m.Files[r.URL.Path]
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for k, v := range m.Headers {
		w.Header().Set(k, v)
	}
	w.Write(body)
}

func serverFixture(t *testing.T) *mockServer {
	m := &mockServer{
		Files: map[string][]byte{
			"/datasets/feed.zip": []byte("zipdata"),
			"/download":          []byte("<TransXChange/>"),
		},
		Headers: map[string]string{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handler))
	t.Cleanup(m.Server.Close)
	return m
}

func TestHTTPGet(t *testing.T) {
	m := serverFixture(t)

	f, err := HTTPGet(context.Background(), m.Server.URL+"/datasets/feed.zip?version=2", nil, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "feed.zip", f.Name)
	assert.Equal(t, []byte("zipdata"), f.Data)

	m.Headers["Content-Disposition"] = `attachment; filename="timetable.xml"`
	f, err = HTTPGet(context.Background(), m.Server.URL+"/download", nil, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "timetable.xml", f.Name)
}

func TestHTTPGetErrors(t *testing.T) {
	m := serverFixture(t)

	_, err := HTTPGet(context.Background(), m.Server.URL+"/missing.zip", nil, GetOptions{})
	assert.ErrorContains(t, err, "status 404")

	_, err = HTTPGet(context.Background(), m.Server.URL+"/datasets/feed.zip", map[string]string{"X-Api-Key": "wrong"}, GetOptions{})
	assert.ErrorContains(t, err, "status 403")

	_, err = HTTPGet(context.Background(), m.Server.URL+"/datasets/feed.zip", nil, GetOptions{MaxSize: 3})
	assert.ErrorIs(t, err, ErrTooLarge)

	f, err := HTTPGet(context.Background(), m.Server.URL+"/datasets/feed.zip", nil, GetOptions{MaxSize: 7})
	require.NoError(t, err)
	assert.Equal(t, []byte("zipdata"), f.Data)
}

func TestFilesystemCache(t *testing.T) {
	m := serverFixture(t)
	dir := t.TempDir()

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fs, err := NewFilesystem(dir)
	require.NoError(t, err)
	fs.TimeNow = func() time.Time { return now }

	url := m.Server.URL + "/datasets/feed.zip"
	opts := GetOptions{Cache: true, CacheTTL: time.Hour}

	f, err := fs.Get(context.Background(), url, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, "feed.zip", f.Name)
	assert.Equal(t, 1, len(m.Requests))

	// Served from disk, including by a fresh instance.
	m.Files["/datasets/feed.zip"] = []byte("changed")
	other, err := NewFilesystem(dir)
	require.NoError(t, err)
	other.TimeNow = fs.TimeNow
	f, err = other.Get(context.Background(), url, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("zipdata"), f.Data)
	assert.Equal(t, "feed.zip", f.Name)
	assert.Equal(t, 1, len(m.Requests))

	// Expired.
	now = now.Add(2 * time.Hour)
	f, err = fs.Get(context.Background(), url, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("changed"), f.Data)
	assert.Equal(t, 2, len(m.Requests))

	// Cache disabled.
	_, err = fs.Get(context.Background(), url, nil, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, len(m.Requests))

	// Failures aren't cached.
	_, err = fs.Get(context.Background(), m.Server.URL+"/missing.zip", nil, opts)
	assert.Error(t, err)
	_, err = fs.Get(context.Background(), m.Server.URL+"/missing.zip", nil, opts)
	assert.Error(t, err)
	assert.Equal(t, 5, len(m.Requests))
}
