// Package api exposes the analysis service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gospc/adapters/excel"
	"gospc/app"
)

// MaxUploadBytes bounds staging uploads
const MaxUploadBytes = 32 << 20

// Server routes HTTP requests to the analysis service
type Server struct {
	router  *gin.Engine
	service *app.AnalysisService
	reader  excel.ReaderConfig
	logger  zerolog.Logger
}

// NewServer creates the router. mode is a gin mode ("release", "debug", "test").
func NewServer(service *app.AnalysisService, mode string, logger zerolog.Logger) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	reader := excel.DefaultReaderConfig()
	reader.DateLayout = service.Config().DateLayout

	s := &Server{
		router:  gin.New(),
		service: service,
		reader:  reader,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.router.MaxMultipartMemory = MaxUploadBytes
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.GET("/datasets", s.listDatasets)
		api.POST("/datasets/:dataset", s.stageDataset)
		api.POST("/datasets/:dataset/analyses", s.analyzeDataset)

		api.POST("/analyses", s.analyzeSeries)
		api.GET("/analyses", s.listAnalyses)
		api.GET("/analyses/:id", s.getAnalysis)
		api.DELETE("/analyses/:id", s.deleteAnalysis)
		api.GET("/analyses/:id/rows", s.getRows)
		api.GET("/analyses/:id/segments", s.getSegments)
		api.GET("/analyses/:id/bands", s.getBands)
		api.GET("/analyses/:id/report", s.getReport)
		api.GET("/analyses/:id/export.xlsx", s.exportWorkbook)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
