package admin

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kk-code-lab/btide/internal/clock"
)

// LoggingMiddleware tags each request with an id, returned in the
// X-Request-Id header, and logs one line per request once it completes.
func LoggingMiddleware(next http.Handler, clk clock.Clock, log logrus.FieldLogger) http.Handler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clk.Now()
		reqID := newRequestID()
		rw := &responseWithReqID{ResponseWriter: w, reqID: reqID}
		next.ServeHTTP(rw, r.WithContext(withRequestID(r.Context(), reqID)))
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		entry := log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rw.status,
			"dur_ms": clk.Now().Sub(start).Milliseconds(),
			"req_id": reqID,
		})
		if rw.status >= http.StatusInternalServerError {
			entry.Warn("admin request failed")
			return
		}
		entry.Info("admin request")
	})
}
