package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/serve/httperror"
)

// RecoverHandler turns a panic into a 500 response. http.ErrAbortHandler is re-raised, net/http uses it to abort
// the response of a client that went away.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			err, isErr := recovered.(error)
			if !isErr {
				err = fmt.Errorf("panic: %v", recovered)
			}
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}

			ctx := req.Context()
			log.Ctx(ctx).WithStack(err).Error(err)
			httperror.InternalError(ctx, "", err, nil).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// routePattern is the chi pattern that matched req, so metrics and logs group "/tenants/acme" and "/tenants/globex"
// together.
func routePattern(req *http.Request) string {
	if rctx := chi.RouteContext(req.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "undefined"
}

func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, req)

			labels := monitor.HTTPRequestLabels{
				Status: strconv.Itoa(ww.Status()),
				Route:  routePattern(req),
				Method: req.Method,
			}
			if err := monitorService.MonitorHttpRequestDuration(time.Since(started), labels); err != nil {
				log.Ctx(req.Context()).Errorf("monitoring request duration: %v", err)
			}
		})
	}
}

// LoggingMiddleware attaches the method, path and request ID to the request logger and logs the start and the end
// of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		logger := log.Ctx(ctx).WithFields(log.F{
			"method": req.Method,
			"path":   req.URL.Path,
			"req":    chimiddleware.GetReqID(ctx),
		})
		req = req.WithContext(log.Set(ctx, logger))

		logger.WithFields(log.F{
			"subsys":    "http",
			"ip":        req.RemoteAddr,
			"host":      req.Host,
			"useragent": req.UserAgent(),
		}).Info("request started")

		ww := chimiddleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, req)

		logger.WithFields(log.F{
			"subsys":   "http",
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(started),
			"route":    routePattern(req),
		}).Info("request finished")
	})
}

func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead, http.MethodOptions},
	})
	return c.Handler
}
