package host

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/jshandler/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainOf(parts ...string) *core.OutputChain {
	c := core.NewOutputChain()
	for _, p := range parts {
		c.Append([]byte(p))
	}
	return c
}

func TestResponseHost_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, httptest.NewRequest("GET", "/x", nil), false)

	require.NoError(t, h.SendHeaders(201, "text/plain"))
	require.NoError(t, h.SendBody(chainOf("h", "i")))

	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("Content-Length"))
	assert.Equal(t, "hi", rec.Body.String())
}

func TestResponseHost_NoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, httptest.NewRequest("GET", "/x", nil), false)

	require.NoError(t, h.SendHeaders(404, core.DefaultContentType))
	require.NoError(t, h.SendLast())
	h.Finalize(404)

	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestResponseHost_EmptyContentTypeIsNotSniffed(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, httptest.NewRequest("GET", "/x", nil), false)

	require.NoError(t, h.SendHeaders(200, ""))
	require.NoError(t, h.SendBody(chainOf("<html>")))

	_, present := rec.Header()["Content-Type"]
	assert.True(t, present)
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestResponseHost_OrderErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, httptest.NewRequest("GET", "/x", nil), false)

	assert.Error(t, h.SendLast())
	require.NoError(t, h.SendHeaders(200, "text/plain"))
	require.NoError(t, h.SendLast())
	assert.Error(t, h.SendBody(chainOf("x")))
	assert.Error(t, h.SendHeaders(200, "text/plain"))
}

func TestResponseHost_Brotli(t *testing.T) {
	body := strings.Repeat("compress me ", 100)
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, req, true)

	require.NoError(t, h.SendHeaders(200, "text/plain"))
	require.NoError(t, h.SendBody(chainOf(body)))

	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))
}

func TestResponseHost_SmallBodyNotCompressed(t *testing.T) {
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec := httptest.NewRecorder()
	h := newResponseHost(rec, req, true)

	require.NoError(t, h.SendHeaders(200, "text/plain"))
	require.NoError(t, h.SendBody(chainOf("tiny")))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", rec.Body.String())
}

func TestAcceptsBrotli(t *testing.T) {
	tests := map[string]bool{
		"":                 false,
		"gzip":             false,
		"br":               true,
		"gzip, br;q=0.5":   true,
		"br;q=0":           false,
		"deflate, BR":      true,
		"gzip, br ; q=0.0": false,
	}
	for header, want := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Accept-Encoding", header)
		assert.Equal(t, want, acceptsBrotli(r), header)
	}
}

func TestNewRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example.com/app/x?a=1&b=2", nil)
	r.Header.Set("User-Agent", "UA1")
	r.Header.Add("X-Multi", "one")
	r.Header.Add("X-Multi", "two")

	req := NewRequest(r)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/app/x", req.URI)
	assert.Equal(t, "a=1&b=2", req.Args)
	assert.Equal(t, "UA1", req.UserAgent)
	assert.Equal(t, "one, two", req.Headers["x-multi"])
	assert.Equal(t, "example.com", req.Headers["host"])
}
