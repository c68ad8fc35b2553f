// Package server exposes aggregated documents over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
)

const shutdownTimeout = 10 * time.Second

// Aggregator produces the documents served by the router.
type Aggregator interface {
	Aggregate(ctx context.Context, name string) (*openapi3.T, error)
	Documents() []string
}

// DocumentEntry is one item of the document listing.
type DocumentEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewRouter builds the HTTP surface. Concurrent requests for one document
// share a single aggregation. metrics may be nil, in which case /metrics is
// not routed.
func NewRouter(agg Aggregator, log logger.ILogger, metrics http.Handler) *gin.Engine {
	agg = newSharedAggregator(agg)

	r := gin.New()
	r.Use(requestLogger(log))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/swagger", func(c *gin.Context) {
		names := agg.Documents()
		entries := make([]DocumentEntry, 0, len(names))
		for _, name := range names {
			entries = append(entries, DocumentEntry{Name: name, URL: DocumentURL(name, FormatJSON)})
		}
		c.JSON(http.StatusOK, gin.H{"documents": entries})
	})

	r.GET("/swagger/:name/:file", documentHandler(agg, log))

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}

// DocumentURL returns the path serving document name in format.
func DocumentURL(name, format string) string {
	return "/swagger/" + url.PathEscape(name) + "/swagger." + format
}

func documentHandler(agg Aggregator, log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var format string
		switch c.Param("file") {
		case "swagger.json":
			format = FormatJSON
		case "swagger.yaml", "swagger.yml":
			format = FormatYAML
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		name := c.Param("name")
		doc, err := agg.Aggregate(c.Request.Context(), name)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		data, contentType, err := Encode(doc, format)
		if err != nil {
			log.Errorf("Failed to encode document %q: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

// statusFor maps an aggregation error to a response status. Upstream
// failures are a bad gateway; everything else is a server-side problem.
func statusFor(err error) int {
	switch {
	case errors.Is(err, aggerrors.ErrFetch), errors.Is(err, aggerrors.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		if status >= http.StatusInternalServerError {
			log.Errorf("%s %s -> %d (%s) %s", c.Request.Method, path, status, time.Since(start), strings.Join(c.Errors.Errors(), "; "))
			return
		}
		log.Infof("%s %s -> %d (%s)", c.Request.Method, path, status, time.Since(start))
	}
}

// UseReleaseMode turns off gin's debug output unless GIN_MODE selects a mode.
func UseReleaseMode() {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
