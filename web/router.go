package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/federation"
	"github.com/deemkeen/versiond/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// MaxInboxBody caps inbound entity documents.
	MaxInboxBody    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Server is the public HTTP surface of the instance.
type Server struct {
	conf        *util.AppConfig
	store       *db.DB
	inbox       *federation.InboxProcessor
	renderer    *federation.Renderer
	uris        federation.URIs
	instanceKey string
	log         *log.Logger
}

// NewServer wires the handlers. instanceKey is the base64 public key
// published in the instance metadata.
func NewServer(conf *util.AppConfig, store *db.DB, inbox *federation.InboxProcessor, renderer *federation.Renderer, instanceKey string) *Server {
	return &Server{
		conf:        conf,
		store:       store,
		inbox:       inbox,
		renderer:    renderer,
		uris:        federation.NewURIs(conf.Conf.Domain),
		instanceKey: instanceKey,
		log:         util.NewLogger("Web"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	g := gin.Default()
	// gin trusts X-Forwarded-For from every peer unless told otherwise
	if err := g.SetTrustedProxies(s.conf.Conf.TrustedProxies); err != nil {
		s.log.Error("Ignoring invalid trustedProxies", "err", err)
		_ = g.SetTrustedProxies(nil)
	}
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Instances push in bursts after a popular post, so inboxes get a
	// larger bucket than the read endpoints.
	inboxLimiter := NewRateLimiter(rate.Limit(20), 50)
	maxBodySize := MaxBytesMiddleware(MaxInboxBody)

	g.POST("/inbox", RateLimitMiddleware(inboxLimiter), maxBodySize, s.HandleInbox)
	g.POST("/users/:id/inbox", RateLimitMiddleware(inboxLimiter), maxBodySize, s.HandleInbox)

	g.GET("/users/:id", s.HandleUser)
	g.GET("/users/:id/outbox", s.HandleOutbox)
	g.GET("/users/:id/feed", s.HandleFeed)
	g.GET("/notes/:id", s.HandleNote)

	g.GET("/.well-known/versia", s.HandleInstance)
	g.GET("/.well-known/webfinger", s.HandleWebfinger)

	return g
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.conf.Conf.HttpPort),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "addr", srv.Addr, "domain", s.conf.Conf.Domain)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
