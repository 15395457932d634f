// Package httpapi exposes the store's services over HTTP.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/export"
	"github.com/safar/go-pos-store/internal/finance"
	"github.com/safar/go-pos-store/internal/inventory"
	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/sales"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth      *auth.Authenticator
	Sales     *sales.Service
	Inventory *inventory.Service
	Finance   *finance.Service
	Export    *export.Service
	Health    Pinger

	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	ServiceName  string
	CookieSecure bool
}

type Handler struct {
	deps Deps
}

func NewRouter(deps Deps) *gin.Engine {
	h := &Handler{deps: deps}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(deps.ServiceName),
		RequestContext(deps.Logger),
		AccessLog(deps.Metrics),
	)

	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/")
	api.Use(RequireAuth(deps.Auth))
	{
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.GET("/inventory", h.ListInventory)
		api.POST("/inventory", h.AddInventory)
		api.GET("/items", h.ListCatalog)
		api.POST("/expenses", h.AddExpense)
		api.POST("/investments", h.AddInvestment)
		api.GET("/export", h.ExportCSV)
		api.GET("/export/ledger", h.ExportLedger)
	}

	return r
}
