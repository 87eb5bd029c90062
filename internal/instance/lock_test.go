package instance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := PathFor(filepath.Join(t.TempDir(), "data", "statisfy.db"))

	first, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())

	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestForwardReplaysQuery(t *testing.T) {
	var gotPath, gotCode, gotState string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCode = r.URL.Query().Get("code")
		gotState = r.URL.Query().Get("state")
	}))
	defer srv.Close()

	err := Forward(context.Background(), srv.Client(), srv.URL+"/", "statisfy://callback?code=abc&state=s1", "/callback")
	require.NoError(t, err)
	assert.Equal(t, "/callback", gotPath)
	assert.Equal(t, "abc", gotCode)
	assert.Equal(t, "s1", gotState)
}

func TestForwardReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "state mismatch", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := Forward(context.Background(), srv.Client(), srv.URL, "statisfy://callback?code=abc", "/callback")
	assert.ErrorContains(t, err, "rejected")
}

func TestForwardUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := Forward(context.Background(), http.DefaultClient, url, "statisfy://callback?code=abc", "/callback")
	assert.ErrorContains(t, err, "failed to reach running instance")
}
