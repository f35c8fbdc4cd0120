// Package server exposes the controller over HTTP and streams its events
// over websocket.
package server

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"gradlab/common"
	"gradlab/core/controller"
	"gradlab/core/dataset"
	"gradlab/core/session"
	"gradlab/core/store"
)

type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	// Mode is the gin mode: debug, release or test.
	Mode string
}

// RunStore is the read side of the run history.
type RunStore interface {
	List() ([]*store.RunRecord, error)
	Get(id string) (*store.RunRecord, error)
}

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

type Server struct {
	cfg  *Config
	ctrl *controller.Controller
	runs RunStore
	hub  *Hub
	log  common.Logger

	router *gin.Engine
	srv    *http.Server
}

// New registers the websocket hub as a display of ctrl. runs may be nil.
func New(cfg *Config, ctrl *controller.Controller, runs RunStore, log common.Logger) *Server {
	if log == nil {
		log = common.GetLogger(common.MODULE_SERVER)
	}
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		runs: runs,
		hub:  NewHub(cfg.AllowedOrigins, log),
		log:  log,
	}
	ctrl.AddDisplay(s.hub)
	s.router = s.setupRouter()
	s.srv = &http.Server{Addr: cfg.ListenAddr, Handler: s.router}
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(s.corsConfig()))

	routes := []route{
		{Method: http.MethodGet, Path: "/datasets", Handler: s.DatasetsHandler},
		{Method: http.MethodPost, Path: "/run", Handler: s.RunHandler},
		{Method: http.MethodPost, Path: "/reset", Handler: s.ResetHandler},
		{Method: http.MethodGet, Path: "/state", Handler: s.StateHandler},
		{Method: http.MethodGet, Path: "/runs", Handler: s.RunsHandler},
		{Method: http.MethodGet, Path: "/runs/:id", Handler: s.RunHistoryHandler},
		{Method: http.MethodGet, Path: "/ws", Handler: s.WebSocketHandler},
	}
	for _, rt := range routes {
		r.Handle(rt.Method, rt.Path, rt.Handler)
	}
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type"},
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.cfg.AllowedOrigins
	return cfg
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.cfg.ListenAddr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) DatasetsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": dataset.Names})
}

func (s *Server) RunHandler(c *gin.Context) {
	var req session.TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}
	if err := s.ctrl.Run(req); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, controller.ErrRunInProgress):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) ResetHandler(c *gin.Context) {
	s.ctrl.Reset()
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) StateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) RunsHandler(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []*store.RunRecord{}})
		return
	}
	runs, err := s.runs.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) RunHistoryHandler(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history disabled"})
		return
	}
	rec, err := s.runs.Get(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) WebSocketHandler(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request)
}
