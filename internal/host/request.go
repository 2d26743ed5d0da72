package host

import (
	"net/http"
	"strings"

	"github.com/cryguy/jshandler/internal/core"
)

// NewRequest copies what scripts can read out of r. Repeated headers are
// joined with ", ".
func NewRequest(r *http.Request) *core.Request {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}
	return &core.Request{
		Method:    r.Method,
		URI:       r.URL.Path,
		Args:      r.URL.RawQuery,
		UserAgent: r.UserAgent(),
		Headers:   headers,
	}
}
