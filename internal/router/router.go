package router

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"tova-go/internal/handlers"
)

// Deps are the collaborators the routes are served from.
type Deps struct {
	Results  handlers.ResultStore
	Payments handlers.PaymentStore
	Mailer   handlers.Mailer
	// AccessLimit caps access checks and result saves per client per
	// minute; zero means 5.
	AccessLimit uint
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":      "Too many requests. Try again later.",
		"retryAfter": time.Until(info.ResetTime).Round(time.Second).String(),
	})
}

func Setup(log *zap.Logger, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://go-echarts.github.io",
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	limit := deps.AccessLimit
	if limit == 0 {
		limit = 5
	}
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: limit,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	resultsHandler := handlers.NewResultsHandler(log, deps.Results, deps.Mailer)
	accessHandler := handlers.NewAccessHandler(log, deps.Payments, deps.Results)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/access/verify", limiter, accessHandler.Verify)

		results := api.Group("/results")
		{
			results.POST("", limiter, resultsHandler.SaveResult)
			results.GET("/:code", resultsHandler.GetResult)
			results.GET("/:code/chart", resultsHandler.ShowChart)
		}
	}

	return router
}
