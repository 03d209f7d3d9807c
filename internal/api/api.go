package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sliink/queuesync/internal/api/docs"
	"github.com/sliink/queuesync/internal/core"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin/inputs"
	"github.com/sliink/queuesync/internal/producer"
)

// Enqueuer is implemented by inputs that accept messages over HTTP.
type Enqueuer interface {
	Enqueue(payload string) (model.TriggerMessage, error)
}

// API represents the REST API for queuesync
type API struct {
	core   *core.Core
	router *gin.Engine
	server *http.Server
	addr   string
}

// NewAPI creates a new API instance
// @title           queuesync API
// @version         1.0
// @description     API for controlling the queue-triggered product upserter

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
func NewAPI(c *core.Core, addr string) *API {
	docs.SwaggerInfo.Host = addr
	docs.SwaggerInfo.BasePath = "/"

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := &API{
		core:   c,
		router: router,
		addr:   addr,
	}

	api.setupRoutes()

	return api
}

// setupRoutes configures all the API routes
func (a *API) setupRoutes() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/status", a.getStatus)

	plugins := a.router.Group("/plugins")
	{
		plugins.GET("", a.getPlugins)
		plugins.GET("/:id", a.getPlugin)
		plugins.POST("/:id/start", a.startPlugin)
		plugins.POST("/:id/stop", a.stopPlugin)
		plugins.POST("/:id/restart", a.restartPlugin)
	}

	buffers := a.router.Group("/buffers")
	{
		buffers.GET("", a.getBuffers)
		buffers.GET("/:id", a.getBuffer)
		buffers.POST("/:id/flush", a.flushBuffer)
	}

	a.router.GET("/config", a.getConfig)
	a.router.PUT("/config", a.updateConfig)

	a.router.POST("/queues/:id/messages", a.enqueueMessage)
	a.router.GET("/produce", a.produce)

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server and blocks until it stops
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// healthCheck handles GET /health
// @Summary      Health check
// @Description  Aggregated health of the core and its plugins
// @Tags         system
// @Produce      json
// @Success      200  {object}  model.HealthStatus
// @Failure      503  {object}  model.HealthStatus
// @Router       /health [get]
func (a *API) healthCheck(c *gin.Context) {
	health := a.core.GetHealthMonitor().GetHealthStatus()
	code := http.StatusOK
	if health.Status == model.StatusError {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// getStatus handles GET /status
// @Summary      Get system status
// @Description  Get the status of the core, its plugins, buffers and pipelines
// @Tags         system
// @Produce      json
// @Success      200  {object}  core.SystemStatus
// @Router       /status [get]
func (a *API) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.Status())
}

// getPlugins handles GET /plugins
// @Summary      Get all plugins
// @Tags         plugins
// @Produce      json
// @Success      200  {array}  core.PluginInfo
// @Router       /plugins [get]
func (a *API) getPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.Plugins())
}

// getPlugin handles GET /plugins/:id
// @Summary      Get plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin ID"
// @Success      200  {object}  core.PluginInfo
// @Failure      404  {object}  map[string]string
// @Router       /plugins/{id} [get]
func (a *API) getPlugin(c *gin.Context) {
	info, ok := a.core.Plugin(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plugin not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// startPlugin handles POST /plugins/:id/start
// @Summary      Start plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin ID"
// @Success      200  {object}  core.PluginInfo
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /plugins/{id}/start [post]
func (a *API) startPlugin(c *gin.Context) {
	a.controlPlugin(c, a.core.StartPlugin)
}

// stopPlugin handles POST /plugins/:id/stop
// @Summary      Stop plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin ID"
// @Success      200  {object}  core.PluginInfo
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /plugins/{id}/stop [post]
func (a *API) stopPlugin(c *gin.Context) {
	a.controlPlugin(c, a.core.StopPlugin)
}

// restartPlugin handles POST /plugins/:id/restart
// @Summary      Restart plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin ID"
// @Success      200  {object}  core.PluginInfo
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /plugins/{id}/restart [post]
func (a *API) restartPlugin(c *gin.Context) {
	a.controlPlugin(c, a.core.RestartPlugin)
}

func (a *API) controlPlugin(c *gin.Context, action func(id string) error) {
	id := c.Param("id")
	if _, ok := a.core.Plugin(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plugin not found"})
		return
	}

	if err := action(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	info, _ := a.core.Plugin(id)
	c.JSON(http.StatusOK, info)
}

// getBuffers handles GET /buffers
// @Summary      Get all buffers
// @Tags         buffers
// @Produce      json
// @Success      200  {object}  map[string]model.BufferStatus
// @Router       /buffers [get]
func (a *API) getBuffers(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.GetBufferManager().GetBufferStatus())
}

// getBuffer handles GET /buffers/:id
// @Summary      Get buffer
// @Tags         buffers
// @Produce      json
// @Param        id   path      string  true  "Output ID"
// @Success      200  {object}  model.BufferStatus
// @Failure      404  {object}  map[string]string
// @Router       /buffers/{id} [get]
func (a *API) getBuffer(c *gin.Context) {
	status, ok := a.core.GetBufferManager().GetBuffer(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Buffer not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// flushBuffer handles POST /buffers/:id/flush
// @Summary      Flush a buffer
// @Description  Send everything buffered for an output now
// @Tags         buffers
// @Produce      json
// @Param        id   path      string  true  "Output ID"
// @Success      200  {object}  map[string]int
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /buffers/{id}/flush [post]
func (a *API) flushBuffer(c *gin.Context) {
	id := c.Param("id")
	if _, ok := a.core.Plugin(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Output not found"})
		return
	}

	sent, err := a.core.FlushBuffer(id)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

// getConfig handles GET /config
// @Summary      Get configuration
// @Description  Get the whole configuration, or one dotted path
// @Tags         config
// @Produce      json
// @Param        path  query     string  false  "Dotted config path"
// @Success      200   {object}  map[string]interface{}
// @Failure      404   {object}  map[string]string
// @Router       /config [get]
func (a *API) getConfig(c *gin.Context) {
	path := c.Query("path")
	value := a.core.GetConfigManager().GetConfig(path, nil)
	if value == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Config path not found"})
		return
	}
	if path != "" {
		c.JSON(http.StatusOK, gin.H{"path": path, "value": value})
		return
	}
	c.JSON(http.StatusOK, value)
}

// updateConfig handles PUT /config
// @Summary      Update configuration
// @Description  Merge settings into the configuration
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        config  body      map[string]interface{}  true  "Settings to merge"
// @Success      200     {object}  map[string]string
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /config [put]
func (a *API) updateConfig(c *gin.Context) {
	var newConfig map[string]interface{}
	if err := c.ShouldBindJSON(&newConfig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration format"})
		return
	}

	if err := a.core.GetConfigManager().SetConfig("", newConfig); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Configuration updated"})
}

// enqueueMessage handles POST /queues/:id/messages
// @Summary      Enqueue a message
// @Description  Offer the raw request body as one message to a memory queue input
// @Tags         queues
// @Accept       plain
// @Produce      json
// @Param        id       path      string  true  "Input ID"
// @Param        payload  body      string  true  "Message payload"
// @Success      202      {object}  model.TriggerMessage
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /queues/{id}/messages [post]
func (a *API) enqueueMessage(c *gin.Context) {
	p, ok := a.core.GetRegistry().GetPlugin(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Queue not found"})
		return
	}

	queue, ok := p.(Enqueuer)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plugin does not accept messages"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := queue.Enqueue(string(payload))
	switch {
	case errors.Is(err, inputs.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, msg)
	}
}

// produce handles GET /produce
// @Summary      Preview a batch
// @Description  Build a product batch with the default factory without writing it
// @Tags         producer
// @Produce      json
// @Param        count    query     int     false  "Batch size"  default(100)
// @Param        payload  query     string  false  "Trigger payload"
// @Success      200      {array}   model.Product
// @Failure      400      {object}  map[string]string
// @Router       /produce [get]
func (a *API) produce(c *gin.Context) {
	count := producer.DefaultBatchSize
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be an integer"})
			return
		}
		count = n
	}

	products, err := producer.New(nil).Produce(c.Query("payload"), count)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, products)
}
