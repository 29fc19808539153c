package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"console-gw/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	catalog service.RoleCatalog,
	authH *AuthHandler,
	chatH *ChatHandler,
	wsH *WorkspaceHandler,
	streamH *StreamHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)

	authed := r.Group("/", JWTAuthMiddleware(jwtSvc))

	workspaces := authed.Group("/workspaces")
	workspaces.GET("", RequirePermission(catalog, "workspaces.view"), wsH.ListWorkspaces)
	workspaces.POST("", RequirePermission(catalog, "workspaces.manage"), wsH.CreateWorkspace)
	workspaces.GET("/:id", RequirePermission(catalog, "workspaces.view"), wsH.GetWorkspace)
	workspaces.GET("/:id/solutions", RequirePermission(catalog, "solutions.view"), wsH.ListSolutions)
	workspaces.POST("/:id/solutions", RequirePermission(catalog, "solutions.manage"), wsH.CreateSolution)
	workspaces.GET("/:id/datasources", RequirePermission(catalog, "datasources.view"), wsH.ListDatasources)
	workspaces.POST("/:id/datasources", RequirePermission(catalog, "datasources.manage"), wsH.CreateDatasource)
	workspaces.POST("/:id/context", RequirePermission(catalog, "workspaces.manage"), wsH.CreateContextSnippet)

	chat := authed.Group("/chat", RequirePermission(catalog, "assistant.view"))
	chat.POST("/sessions", chatH.CreateSession)
	chat.GET("/sessions", chatH.ListSessions)
	chat.GET("/sessions/:id/messages", chatH.ListMessages)
	chat.POST("/sessions/:id/messages", chatH.PostMessage)
	chat.GET("/sessions/:id/stream", streamH.Stream)
	chat.GET("/messages/:chatID/thinking", chatH.GetThinking)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap. En rutas
// autenticadas agrega la identidad y los roles resueltos por el JWT middleware.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if claims, ok := GetAuthClaims(c); ok {
			fields = append(fields,
				zap.String("uid", claims.UserID),
				zap.Strings("roles", claims.Roles),
			)
		}
		logger.Info("request", fields...)
	}
}
