package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

func loggingMiddleware(logger logsvc.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now().UTC()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Infof("%s %s status=%d from=%s req=%s dur=%s",
				r.Method, r.URL.Path, ww.Status(), r.RemoteAddr, middleware.GetReqID(r.Context()), time.Since(start))
		})
	}
}
