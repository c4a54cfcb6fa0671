// Package api exposes a running node over a small HTTP interface used by
// the command-line client.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rudransh-shrivastava/peer-relay/internal/ledger"
	"github.com/rudransh-shrivastava/peer-relay/internal/node"
	"github.com/rudransh-shrivastava/peer-relay/internal/routing"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of a node the API drives.
type Engine interface {
	ID() string
	Neighbors() []string
	Routes() map[string]string
	Transfers() []ledger.Entry
	Incoming() []string
	LocalFiles() ([]string, error)
	Join(ctx context.Context, addr string) (string, error)
	SendFile(ctx context.Context, destination, name string) error
	Request(name string) error
}

var _ Engine = (*node.Node)(nil)

type Server struct {
	engine Engine
	router *gin.Engine
	logger *logrus.Logger
}

func NewServer(engine Engine, logger *logrus.Logger) *Server {
	s := &Server{
		engine: engine,
		router: gin.New(),
		logger: logger,
	}
	s.router.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/status", s.status)
	s.router.GET("/neighbors", s.neighbors)
	s.router.GET("/routes", s.routeTable)
	s.router.GET("/transfers", s.transfers)
	s.router.GET("/files", s.files)
	s.router.POST("/join", s.join)
	s.router.POST("/send", s.send)
	s.router.POST("/request", s.request)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve answers requests on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.logger.Infof("API listening on %s", l.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Microsecond),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, routing.ErrUnknownDestination):
		return http.StatusNotFound
	case errors.Is(err, node.ErrSendInFlight), errors.Is(err, node.ErrNoNeighbors):
		return http.StatusConflict
	case errors.Is(err, node.ErrJoinTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, node.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
