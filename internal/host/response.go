package host

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/jshandler/internal/core"
)

// minCompressBytes is the smallest body worth compressing.
const minCompressBytes = 256

// responseHost implements core.Host on an http.ResponseWriter. Headers are
// held until the body or the no-body signal arrives, so Content-Length and
// Content-Encoding can follow the chain.
type responseHost struct {
	w        http.ResponseWriter
	r        *http.Request
	compress bool

	status      int
	contentType string
	headersSet  bool
	committed   bool
}

var _ core.Host = (*responseHost)(nil)

func newResponseHost(w http.ResponseWriter, r *http.Request, compress bool) *responseHost {
	return &responseHost{w: w, r: r, compress: compress}
}

func (h *responseHost) SendHeaders(status int, contentType string) error {
	if h.committed {
		return errors.New("headers already sent")
	}
	h.status, h.contentType, h.headersSet = status, contentType, true
	hdr := h.w.Header()
	if contentType == "" {
		// A nil entry stops net/http from sniffing one.
		hdr["Content-Type"] = nil
	} else {
		hdr.Set("Content-Type", contentType)
	}
	return nil
}

func (h *responseHost) SendBody(chain *core.OutputChain) error {
	if err := h.commitCheck(); err != nil {
		return err
	}
	if !bodyAllowed(h.status) {
		h.commit()
		return nil
	}
	hdr := h.w.Header()
	if h.compress && chain.Len() >= minCompressBytes && acceptsBrotli(h.r) {
		hdr.Set("Content-Encoding", "br")
		hdr.Add("Vary", "Accept-Encoding")
		h.commit()
		bw := brotli.NewWriter(h.w)
		if _, err := chain.WriteTo(bw); err != nil {
			_ = bw.Close()
			return err
		}
		return bw.Close()
	}
	hdr.Set("Content-Length", strconv.Itoa(chain.Len()))
	h.commit()
	_, err := chain.WriteTo(h.w)
	return err
}

// SendLast emits an empty body.
func (h *responseHost) SendLast() error {
	if err := h.commitCheck(); err != nil {
		return err
	}
	if bodyAllowed(h.status) {
		h.w.Header().Set("Content-Length", "0")
	}
	h.commit()
	return nil
}

// Finalize flushes the no-body response.
func (h *responseHost) Finalize(int) {
	if f, ok := h.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *responseHost) commitCheck() error {
	switch {
	case !h.headersSet:
		return errors.New("body sent before headers")
	case h.committed:
		return errors.New("response already sent")
	}
	return nil
}

func (h *responseHost) commit() {
	h.committed = true
	h.w.WriteHeader(h.status)
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "br") {
			continue
		}
		if k, v, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(k) == "q" {
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q == 0 {
				return false
			}
		}
		return true
	}
	return false
}
