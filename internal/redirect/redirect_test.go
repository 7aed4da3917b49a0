package redirect

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		want    map[string]any
		wantErr bool
	}{
		{
			name:   "redirect result",
			rawURL: "myapp://return?redirectResult=abc",
			want:   map[string]any{"redirectResult": "abc"},
		},
		{
			name:   "payload and redirect result",
			rawURL: "myapp://return?payload=p1&redirectResult=r1",
			want:   map[string]any{"payload": "p1", "redirectResult": "r1"},
		},
		{
			name:   "PaRes with MD",
			rawURL: "myapp://return?PaRes=pa&MD=md",
			want:   map[string]any{"PaRes": "pa", "MD": "md"},
		},
		{
			name:   "PaRes without MD falls back to the query string",
			rawURL: "myapp://return?PaRes=pa",
			want:   map[string]any{"returnUrlQueryString": "PaRes=pa"},
		},
		{
			name:   "unknown parameters are kept encoded",
			rawURL: "myapp://return?foo=a%20b&bar=1",
			want:   map[string]any{"returnUrlQueryString": "foo=a%20b&bar=1"},
		},
		{
			name:    "no query",
			rawURL:  "myapp://return",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			require.NoError(t, err)
			got, err := ParseResult(u)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrRedirect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResult_NilURL(t *testing.T) {
	_, err := ParseResult(nil)
	assert.ErrorIs(t, err, apperr.ErrRedirect)
}

func TestHTTPLauncher_RejectsEmptyURL(t *testing.T) {
	l := &HTTPLauncher{ReturnURL: "myapp://return"}
	assert.ErrorIs(t, l.Launch(""), apperr.ErrRedirect)
}

func TestHTTPLauncher_RequiresReturnURL(t *testing.T) {
	l := &HTTPLauncher{}
	assert.ErrorIs(t, l.Launch("https://example.com"), apperr.ErrConfiguration)
}

func TestHTTPLauncher_CapturesReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "myapp://return?redirectResult=xyz", http.StatusFound)
	}))
	defer srv.Close()

	got := make(chan *url.URL, 1)
	l := &HTTPLauncher{
		Client:    srv.Client(),
		ReturnURL: "myapp://return",
		OnReturn:  func(u *url.URL) { got <- u },
	}
	require.NoError(t, l.Launch(srv.URL+"/authorize"))

	select {
	case u := <-got:
		details, err := ParseResult(u)
		require.NoError(t, err)
		assert.Equal(t, "xyz", details["redirectResult"])
	case <-time.After(2 * time.Second):
		t.Fatal("return url was not captured")
	}
}
