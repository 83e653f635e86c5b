package http

import (
	"github.com/gin-gonic/gin"

	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// defaultAddr is used when Run is given an empty address.
const defaultAddr = ":8080"

// Server pairs the configured engine with the service log. Engine is
// exported so tests can drive requests without opening a listener.
type Server struct {
	Engine *gin.Engine
	log    *logger.Logger
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg), log: cfg.Log}
}

// Run blocks serving HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = defaultAddr
	}
	if s.log != nil {
		s.log.Info("http server listening", "addr", addr)
	}
	return s.Engine.Run(addr)
}
