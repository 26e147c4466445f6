package middleware

import (
	"net/http"
	"time"
)

// ResponseTimeHeader reports how long the handler took.
const ResponseTimeHeader = "X-Response-Time"

// RequestTimer measures request processing time. The header is set before
// the first byte is written, so it covers the handler up to that point.
func RequestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &timedWriter{ResponseWriter: w, start: time.Now()}
		next.ServeHTTP(tw, r)
		tw.stamp()
	})
}

type timedWriter struct {
	http.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.Header().Set(ResponseTimeHeader, time.Since(w.start).String())
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}
