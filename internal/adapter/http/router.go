package http

import (
	"log/slog"

	"github.com/6R1M5L07H/shopcore/internal/adapter/http/middleware"
	"github.com/6R1M5L07H/shopcore/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Orders   *OrderHandler
	Checkout *CheckoutHandler
	Admin    *AdminHandler
	Webhook  *WebhookHandler
	Token    *TokenHandler
	Authz    *middleware.Authz
	Sig      *middleware.SignatureVerify
	Log      *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(d.Log))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Info("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", d.Token.IssueToken)

	// Payment processor callback: HMAC over the raw body, no bearer token.
	r.POST("/v1/webhooks/payment", d.Sig.Require(), d.Webhook.HandlePayment)

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", d.Authz.Require("orders.checkout"), d.Checkout.Checkout)
		v1.GET("/orders/:id", d.Authz.Require("orders.read"), d.Orders.GetOrderByID)
		v1.POST("/orders/:id/cancel", d.Authz.Require("orders.cancel"), d.Orders.CancelOrder)

		admin := v1.Group("/admin")
		{
			admin.POST("/orders/:id/ship", d.Authz.Require("admin.ship"), d.Admin.ShipOrder)
			admin.POST("/orders/:id/cancel", d.Authz.Require("admin.cancel"), d.Admin.AdminCancel)
		}
	}

	return r
}
