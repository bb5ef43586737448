package skills

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAwesomeList(t *testing.T) {
	readme := `# Awesome Claude Skills

Some intro text.

- [Commit Helper](https://github.com/someone/commit-helper) - Writes commit messages
- **[PDF Tools](https://github.com/acme/pdf-tools)** — Work with PDF files
- [External](https://example.com/thing): Not on GitHub
- not a link line
`

	entries := ParseAwesomeList(readme)
	require.Len(t, entries, 3)

	assert.Equal(t, "Commit Helper", entries[0].Name)
	assert.Equal(t, "Writes commit messages", entries[0].Description)
	assert.Equal(t, "someone/commit-helper", entries[0].Repo)

	assert.Equal(t, "PDF Tools", entries[1].Name)
	assert.Equal(t, "Work with PDF files", entries[1].Description)
	assert.Equal(t, "acme/pdf-tools", entries[1].Repo)

	assert.Equal(t, "External", entries[2].Name)
	assert.Empty(t, entries[2].Repo)
}

func TestFetchAwesomeList(t *testing.T) {
	readme := "- [Skill One](https://github.com/a/b) - Does one thing\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/awesome/readme", r.URL.Path)
		assert.Equal(t, "token tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"content": base64.StdEncoding.EncodeToString([]byte(readme)),
		})
	}))
	defer server.Close()

	r := NewRegistry("tok-123")
	r.client = server.Client()
	withTestAPI(t, server.URL)

	entries, err := r.FetchAwesomeList(context.Background(), "acme/awesome")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Skill One", entries[0].Name)
}

func TestFetchAwesomeListNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewRegistry("")
	r.client = server.Client()
	withTestAPI(t, server.URL)

	entries, err := r.FetchAwesomeList(context.Background(), "gone/repo")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// withTestAPI points the registry at a local test server for the test's
// duration.
func withTestAPI(t *testing.T, url string) {
	t.Helper()
	old := githubAPIBase
	githubAPIBase = url
	t.Cleanup(func() { githubAPIBase = old })
}

func TestRegistryTimeoutConfigured(t *testing.T) {
	assert.Equal(t, 15*time.Second, registryHTTPClient.Timeout)
}
