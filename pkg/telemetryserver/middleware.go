package telemetryserver

import (
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
)

// statusWriter records whether headers were sent.
type statusWriter struct {
	http.ResponseWriter
	mu            sync.Mutex
	headerWritten bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.headerWritten {
		sw.headerWritten = true
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.headerWritten = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) HeaderWritten() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.headerWritten
}

// recoverMiddleware turns a handler panic into a 500 and logs the stack.
func recoverMiddleware(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				logger.Error(r.Context(), "panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.String("stack", string(debug.Stack())),
					observability.Any("panic", recovered),
				)

				if !sw.HeaderWritten() {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
