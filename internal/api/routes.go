package api

// setupRoutes wires every endpoint from the external interface table:
// unauthenticated auth entry points, bearer-gated autonomous engine
// control, the SSE stream (bearer or sseToken), and portfolio views.
func (s *Server) setupRoutes() {
	authGroup := s.router.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.GET("/me", s.bearerAuthMiddleware, s.handleMe)
	}

	autonomous := s.router.Group("/autonomous")
	autonomous.Use(s.bearerAuthMiddleware)
	{
		autonomous.POST("/sse-token", s.handleIssueSSEToken)
		autonomous.GET("/status", s.handleEngineStatus)
		autonomous.POST("/start", s.handleEngineStart)
		autonomous.POST("/stop", s.handleEngineStop)
		autonomous.GET("/analysts", s.handleListAnalysts)
	}
	// /autonomous/events authenticates itself (bearer OR sseToken OR legacy
	// token), so it sits outside the bearer-only group above.
	s.router.GET("/autonomous/events", s.handleSSEStream)

	portfolio := s.router.Group("/portfolio")
	portfolio.Use(s.bearerAuthMiddleware)
	{
		portfolio.GET("/summary", s.handlePortfolioSummary)
		portfolio.POST("/create", s.handlePortfolioCreate)
		portfolio.GET("/:agentId", s.handlePortfolioGet)
		portfolio.GET("/:agentId/positions", s.handlePortfolioPositions)
	}

	s.router.GET("/healthz", s.handleHealth)
}
