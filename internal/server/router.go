package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/analysis"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/auth"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	subjectContextKey = "nodeflow_subject"
	accessTokenQuery  = "access_token"
	bearerPrefix      = "Bearer "

	// statusClientClosedRequest reports a request abandoned by its client.
	statusClientClosedRequest = 499
)

var (
	errMissingCodingService  = errors.New("coding service dependency required")
	errMissingAnalysisRunner = errors.New("analysis runner dependency required")
	errMissingChangeFeed     = errors.New("change feed dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator resolves a bearer token to its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface. A nil Tokens leaves the API unauthenticated.
type Dependencies struct {
	CodingService     *coding.Service
	Analysis          *analysis.Runner
	Feed              *ChangeFeed
	Tokens            TokenValidator
	Logger            *zap.Logger
	AllowedOrigins    []string
	Metrics           http.Handler
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.CodingService == nil {
		return nil, errMissingCodingService
	}
	if deps.Analysis == nil {
		return nil, errMissingAnalysisRunner
	}
	if deps.Feed == nil {
		return nil, errMissingChangeFeed
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		coding:            deps.CodingService,
		analysis:          deps.Analysis,
		feed:              deps.Feed,
		tokens:            deps.Tokens,
		logger:            logger,
		heartbeatInterval: heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics))

	api := router.Group("/")
	if handler.tokens != nil {
		api.Use(handler.authorizeRequest)
	}

	api.GET("/projects", handler.handleListProjects)
	api.POST("/projects", handler.handleCreateProject)
	api.GET("/projects/:projectID", handler.handleGetProject)
	api.PATCH("/projects/:projectID", handler.handleRenameProject)
	api.DELETE("/projects/:projectID", handler.handleDeleteProject)
	api.GET("/projects/:projectID/events", handler.handleProjectEvents)
	api.GET("/projects/:projectID/word-count", handler.handleWordCount)

	api.GET("/projects/:projectID/participants", handler.handleListParticipants)
	api.POST("/projects/:projectID/participants", handler.handleCreateParticipant)
	api.PATCH("/participants/:participantID", handler.handleUpdateParticipant)
	api.DELETE("/participants/:participantID", handler.handleDeleteParticipant)

	api.GET("/projects/:projectID/documents", handler.handleListDocuments)
	api.POST("/projects/:projectID/documents", handler.handleCreateDocument)
	api.GET("/documents/:documentID", handler.handleGetDocument)
	api.PATCH("/documents/:documentID", handler.handleRenameDocument)
	api.PUT("/documents/:documentID/content", handler.handleUpdateDocumentContent)
	api.PUT("/documents/:documentID/participant", handler.handleAssignDocumentParticipant)
	api.DELETE("/documents/:documentID", handler.handleDeleteDocument)

	api.GET("/projects/:projectID/nodes", handler.handleListNodes)
	api.POST("/projects/:projectID/nodes", handler.handleCreateNode)
	api.POST("/projects/:projectID/nodes/reorder", handler.handleReorderSiblings)
	api.GET("/nodes/:nodeID", handler.handleGetNode)
	api.POST("/nodes/:nodeID/rename", handler.handleRenameNode)
	api.POST("/nodes/:nodeID/recolor", handler.handleRecolorNode)
	api.POST("/nodes/:nodeID/move", handler.handleMoveNode)
	api.GET("/nodes/:nodeID/descendants", handler.handleDescendants)
	api.GET("/nodes/:nodeID/segments", handler.handleNodeFamilySegments)
	api.DELETE("/nodes/:nodeID", handler.handleDeleteNode)

	api.GET("/projects/:projectID/segments", handler.handleListProjectSegments)
	api.GET("/documents/:documentID/segments", handler.handleListDocumentSegments)
	api.POST("/documents/:documentID/segments", handler.handleAddSegment)
	api.DELETE("/segments/:segmentID", handler.handleDeleteSegment)

	api.GET("/projects/:projectID/statistics", handler.handleStatistics)
	api.GET("/projects/:projectID/overlap", handler.handleOverlap)
	api.GET("/projects/:projectID/outline", handler.handleOutline)

	return router, nil
}

type httpHandler struct {
	coding            *coding.Service
	analysis          *analysis.Runner
	feed              *ChangeFeed
	tokens            TokenValidator
	logger            *zap.Logger
	heartbeatInterval time.Duration
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 || containsWildcard(origins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest accepts the token from the Authorization header, or from the
// access_token query parameter for EventSource clients that cannot set headers.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	switch {
	case strings.HasPrefix(header, bearerPrefix):
		token = strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	case header == "":
		token = strings.TrimSpace(c.Query(accessTokenQuery))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

// respondError maps coding and analysis failures onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, message := classifyError(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	}
	switch {
	case status == statusClientClosedRequest:
		h.logger.Debug("request canceled", fields...)
	case status == http.StatusGatewayTimeout:
		h.logger.Warn("request deadline exceeded", fields...)
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", fields...)
	default:
		h.logger.Warn("request failed", fields...)
	}
	body := gin.H{"error": message}
	if code := coding.ErrorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	case errors.Is(err, coding.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, coding.ErrCycle):
		return http.StatusConflict, "cycle"
	case errors.Is(err, coding.ErrDuplicateName):
		return http.StatusConflict, "duplicate_name"
	case errors.Is(err, coding.ErrInvalidRange):
		return http.StatusUnprocessableEntity, "invalid_range"
	case errors.Is(err, coding.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, analysis.ErrStale):
		return http.StatusServiceUnavailable, "stale_result"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *httpHandler) invalidRequest(c *gin.Context, err error) {
	h.logger.Debug("invalid request payload",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
