package web

import (
	"github.com/gin-gonic/gin"

	"smartpay/config"
	"smartpay/service"
)

// NewRouter builds the HTTP surface over a group service.
func NewRouter(svc *service.GroupService) *gin.Engine {
	r := gin.New()
	setupMiddlewares(r)

	h := NewHandler(svc)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/groups", h.CreateGroup)
		api.GET("/groups", h.ListGroups)
		api.POST("/groups/join", h.JoinGroup)
		api.GET("/groups/:id", h.GetGroup)
		api.PUT("/groups/:id", h.UpdateGroup)
		api.DELETE("/groups/:id", h.DeleteGroup)

		api.GET("/groups/:id/members", h.ListMembers)
		api.POST("/groups/:id/members", h.AddMember)

		api.GET("/groups/:id/expenses", h.ListExpenses)
		api.POST("/groups/:id/expenses", h.CreateExpense)

		api.GET("/groups/:id/balances", h.GetBalances)
		api.GET("/groups/:id/transfers", h.GetTransfers)
		api.GET("/groups/:id/events", h.StreamGroupEvents)

		api.POST("/splits/:id/settle", h.SettleSplit)
	}

	return r
}

// Serve runs the HTTP server until it fails.
func Serve(cfg *config.Config, svc *service.GroupService) error {
	r := NewRouter(svc)
	return r.Run(":" + cfg.Port)
}
