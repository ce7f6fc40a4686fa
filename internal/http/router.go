package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/daisinet/securetools/internal/authn"
	"github.com/daisinet/securetools/internal/config"
	"github.com/daisinet/securetools/internal/http/handler"
	httpmiddleware "github.com/daisinet/securetools/internal/http/middleware"
	"github.com/daisinet/securetools/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, broker *handler.BrokerHandler, validator *authn.Validator, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		operator := httpmiddleware.Operator(validator)
		api.POST("/install", operator, broker.Install)
		api.POST("/uninstall", operator, broker.Uninstall)

		api.POST("/configure", broker.Configure)
		api.POST("/configure/status", broker.ConfigureStatus)
		api.POST("/execute", broker.Execute)

		auth := api.Group("/auth")
		{
			auth.POST("/start", broker.AuthStart)
			auth.GET("/start", broker.AuthStartRedirect)
			auth.GET("/callback", broker.AuthCallback)
			auth.POST("/status", broker.AuthStatus)
		}
	}

	return r
}
