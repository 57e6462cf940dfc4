package metrichttp

import (
	"io"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	status int
}

// wrap returns w with status capture. The result implements the same
// optional interfaces (http.Flusher, http.Hijacker, io.ReaderFrom...) as w.
func (r *statusRecorder) wrap(w http.ResponseWriter) http.ResponseWriter {
	return httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				r.observe(code)
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				r.observe(http.StatusOK)
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				r.observe(http.StatusOK)
				return next(src)
			}
		},
	})
}

// observe keeps the first final status. Informational 1xx headers other
// than 101 precede the real one.
func (r *statusRecorder) observe(code int) {
	if r.status != 0 {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		return
	}
	r.status = code
}

// Status returns the written status, 200 if the handler wrote nothing.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
