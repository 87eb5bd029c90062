package spotify

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCode  string
		wantState string
		wantErr   error
	}{
		{"loopback redirect", "http://127.0.0.1:8080/callback?code=abc&state=s", "abc", "s", nil},
		{"deep link", "statisfy://callback?code=abc&state=s", "abc", "s", nil},
		{"request target", "/callback?code=abc&state=s", "abc", "s", nil},
		{"bare code", "  AQDx-9_z  ", "AQDx-9_z", "", nil},
		{"denied", "statisfy://callback?error=access_denied&state=s", "", "", ErrAuthDenied},
		{"no code", "statisfy://callback?state=s", "", "", ErrNoCode},
		{"empty", "   ", "", "", ErrNoCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state, err := ParseCallback(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantState, state)
		})
	}
}

func TestIsDeepLink(t *testing.T) {
	assert.True(t, IsDeepLink("statisfy://callback?code=abc"))
	assert.True(t, IsDeepLink("STATISFY://callback"))
	assert.False(t, IsDeepLink("http://127.0.0.1:8080/callback"))
	assert.False(t, IsDeepLink("--log-level"))
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", listenAddr("http://127.0.0.1:8080/callback", "0.0.0.0:9"))
	assert.Equal(t, "127.0.0.1:9090", listenAddr("statisfy://callback", "127.0.0.1:9090"))
	assert.Equal(t, "127.0.0.1:9090", listenAddr("https://example.com/callback", "127.0.0.1:9090"))
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
		delivered  bool
	}{
		{"accepted", "/callback?code=abc&state=st", http.StatusOK, "abc", true},
		{"other request", "/callback?code=abc&state=other", http.StatusBadRequest, "", false},
		{"missing code", "/callback?state=st", http.StatusBadRequest, "", false},
		{"declined", "/callback?error=access_denied&state=st", http.StatusForbidden, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("st", results, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			select {
			case res := <-results:
				require.True(t, tt.delivered, "unexpected result %+v", res)
				assert.Equal(t, tt.wantCode, res.code)
			default:
				assert.False(t, tt.delivered, "no result delivered")
			}
		})
	}
}

func TestAwaitCodeFromRedirect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/callback?code=abc&state=st", ln.Addr()))
		if err == nil {
			resp.Body.Close()
		}
	}()

	code, err := awaitCode(ctx, ln, nil, "st", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "abc", code)
}

func TestAwaitCodeFromPastedInput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the first line belongs to another request and is skipped
	input := strings.NewReader("statisfy://callback?code=old&state=other\n\nstatisfy://callback?code=new&state=st\n")
	code, err := awaitCode(ctx, nil, input, "st", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "new", code)
}

func TestAwaitCodeDenied(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := awaitCode(ctx, nil, strings.NewReader("/callback?error=access_denied\n"), "st", zap.NewNop())
	assert.ErrorIs(t, err, ErrAuthDenied)
}

func TestAwaitCodeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitCode(ctx, nil, io.MultiReader(), "st", zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}
