package http_api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.POST("/auth/link", s.linkAccount)

	authed := v1.Group("")
	authed.Use(s.requireAuth())
	authed.POST("/transfer", s.initiateTransfer)
	authed.POST("/transfer/complete", s.completeTransfer)
	authed.GET("/transfer/:id", s.getTransfer)
	authed.POST("/wallet/connect", s.connectWallet)
	authed.GET("/transactions", s.listTransactions)
}
