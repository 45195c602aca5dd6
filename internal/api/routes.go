package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	cameras := s.router.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:id", s.cameraHandler.GetCamera)
		cameras.POST("/:id/start", s.cameraHandler.StartCamera)
		cameras.POST("/:id/stop", s.cameraHandler.StopCamera)
	}

	directives := s.router.Group("/directives")
	{
		directives.GET("", s.directiveHandler.ListDirectives)
		directives.POST("", s.directiveHandler.CreateDirective)
		directives.DELETE("/:id", s.directiveHandler.DeleteDirective)
	}

	alerts := s.router.Group("/alerts")
	{
		alerts.GET("", s.alertHandler.ListAlerts)
		alerts.POST("/:id/acknowledge", s.alertHandler.Acknowledge)
	}

	wsGroup := s.router.Group("/ws")
	{
		wsGroup.GET("/live-feed", s.wsHandler.LiveFeed)
		wsGroup.GET("/alerts", s.wsHandler.Alerts)
		wsGroup.GET("/analysis", s.wsHandler.Analysis)
		wsGroup.GET("/system", s.wsHandler.System)
	}
}
