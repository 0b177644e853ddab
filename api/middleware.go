package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestIDHeader request ID header
const RequestIDHeader = "X-Request-ID"

// redactedSegment replaces share IDs in logged request URIs
const redactedSegment = "{id}"

// redactPath replace every UUID path segment, as share IDs act as bearer tokens
func redactPath(path string) string {
	segments := strings.Split(path, "/")
	for idx, segment := range segments {
		if _, err := uuid.Parse(segment); err == nil {
			segments[idx] = redactedSegment
		}
	}
	return strings.Join(segments, "/")
}

/*
requestID tag each request with an ID, taken from the caller or generated

The request parameters are stored as a goutils.RestRequestParam, so every component using
goutils.ModifyLogMetadataByRestRequestParam logs the request ID. Headers are not recorded.
*/
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, reqID)

		params := goutils.RestRequestParam{
			ID:         reqID,
			Host:       r.Host,
			URI:        redactPath(r.URL.Path),
			Method:     r.Method,
			Referer:    r.Referer(),
			RemoteAddr: r.RemoteAddr,
			Proto:      r.Proto,
			ProtoMajor: r.ProtoMajor,
			ProtoMinor: r.ProtoMinor,
			Timestamp:  time.Now(),
		}
		ctx := context.WithValue(r.Context(), goutils.RestRequestParamKey{}, params)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog log each request once it completes. Share IDs are not logged; the route
// pattern is used instead of the path.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		route := redactPath(r.URL.Path)
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		entry := log.WithFields(h.GetLogTagsForContext(r.Context())).WithFields(log.Fields{
			"route":   route,
			"status":  wrapped.Status(),
			"bytes":   wrapped.BytesWritten(),
			"elapsed": time.Since(started).String(),
		})
		if wrapped.Status() >= http.StatusInternalServerError {
			entry.Warn("Request served")
		} else {
			entry.Info("Request served")
		}
	})
}
