package main

import (
	"net/http"
	"time"

	"github.com/buker/go-todo/docs"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/penglongli/gin-metrics/ginmetrics"
	log "github.com/sirupsen/logrus"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	requestIDHeader = "X-Request-ID"
	logEntryKey     = "logEntry"
)

// @title Todo API
// @version 1.0
// @description CRUD API for todo items stored in MongoDB
// @BasePath /api

// RouterOptions selects the optional middleware.
type RouterOptions struct {
	Sentry  bool
	Metrics *ginmetrics.Monitor
}

// NewRouter wires the todo handlers and middleware onto a gin engine.
func NewRouter(store TodoStore, opts RouterOptions) *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery())
	app.Use(requestLogger())
	app.Use(cors.Default())
	app.Use(compress())
	if opts.Sentry {
		app.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
		}))
	}
	if opts.Metrics != nil {
		opts.Metrics.UseWithoutExposingEndpoint(app)
	}

	docs.SwaggerInfo.Title = "Todo API"
	docs.SwaggerInfo.Description = "CRUD API for todo items stored in MongoDB"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.BasePath = "/api"
	app.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	app.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := &todoAPI{store: store}
	v := app.Group("/api")
	{
		v.POST("/todos", api.handleCreateTodo)
		v.GET("/todos", api.handleListTodos)
		v.GET("/todos/:id", api.handleGetTodo)
		v.PUT("/todos/:id", api.handleUpdateTodo)
		v.DELETE("/todos/:id", api.handleDeleteTodo)
	}
	return app
}

// NewMetricsRouter exposes the monitor's metrics on their own engine.
func NewMetricsRouter() (*gin.Engine, *ginmetrics.Monitor) {
	metricRouter := gin.New()
	metricRouter.Use(gin.Recovery())
	// get global Monitor object
	metrics := ginmetrics.GetMonitor()
	metrics.SetMetricPath("/metrics")
	metrics.SetSlowTime(10)
	// used to p95, p99
	metrics.SetDuration([]float64{0.1, 0.3, 1.2, 5, 10})
	metrics.Expose(metricRouter)
	return metricRouter, metrics
}

// compress gzips responses except deletes, which answer 204 without a body.
func compress() gin.HandlerFunc {
	gz := gzip.Gzip(gzip.DefaultCompression)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodDelete || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		gz(c)
	}
}

// requestLogger tags each request with an id and writes one access log line.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		entry := log.WithField("request_id", id)
		c.Set(logEntryKey, entry)

		c.Next()

		entry.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("Request handled")
	}
}

func requestLog(c *gin.Context) *log.Entry {
	if v, ok := c.Get(logEntryKey); ok {
		if entry, ok := v.(*log.Entry); ok {
			return entry
		}
	}
	return log.NewEntry(log.StandardLogger())
}
