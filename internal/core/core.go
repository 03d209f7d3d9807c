package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/metrics"
	"github.com/sliink/queuesync/internal/model"
)

// Core is the central coordinator of the system
type Core struct {
	eventBus      *EventBus
	registry      *PluginRegistry
	pipeline      *DataPipeline
	bufferManager *BufferManager
	configManager *ConfigManager
	healthMonitor *HealthMonitor

	tickInterval time.Duration
	flushBatches int

	ctx     context.Context
	cancel  context.CancelFunc
	workers map[string]*worker
	mu      sync.Mutex
	BaseComponent
}

// worker tracks the goroutines driving one input or output plugin.
type worker struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCore creates a new core system. The config manager exists before
// Initialize so configuration can be loaded first.
func NewCore() *Core {
	ctx, cancel := context.WithCancel(context.Background())

	return &Core{
		configManager: NewConfigManager(),
		ctx:           ctx,
		cancel:        cancel,
		workers:       make(map[string]*worker),
		BaseComponent: NewBaseComponent("core", "Core System"),
	}
}

// GetComponent returns a core component or plugin by ID
func (c *Core) GetComponent(id string) (Component, bool) {
	switch id {
	case "event_bus":
		return c.eventBus, c.eventBus != nil
	case "plugin_registry":
		return c.registry, c.registry != nil
	case "data_pipeline":
		return c.pipeline, c.pipeline != nil
	case "buffer_manager":
		return c.bufferManager, c.bufferManager != nil
	case "config_manager":
		return c.configManager, true
	case "health_monitor":
		return c.healthMonitor, c.healthMonitor != nil
	case "core":
		return c, true
	}

	if c.registry != nil {
		if plugin, exists := c.registry.GetPlugin(id); exists {
			return plugin, true
		}
	}

	return nil, false
}

// GetDataPipeline returns the data pipeline component
func (c *Core) GetDataPipeline() *DataPipeline {
	return c.pipeline
}

// GetConfigManager returns the configuration manager component
func (c *Core) GetConfigManager() *ConfigManager {
	return c.configManager
}

// GetRegistry returns the plugin registry
func (c *Core) GetRegistry() *PluginRegistry {
	return c.registry
}

// GetBufferManager returns the buffer manager
func (c *Core) GetBufferManager() *BufferManager {
	return c.bufferManager
}

// GetHealthMonitor returns the health monitor
func (c *Core) GetHealthMonitor() *HealthMonitor {
	return c.healthMonitor
}

// GetEventBus returns the event bus
func (c *Core) GetEventBus() *EventBus {
	return c.eventBus
}

// Initialize creates the core components and reads core.* settings
func (c *Core) Initialize() bool {
	c.eventBus = NewEventBus()
	c.registry = NewPluginRegistry()
	c.healthMonitor = NewHealthMonitor()
	c.bufferManager = NewBufferManager(c.configManager.GetInt("core.buffer_size"))

	c.tickInterval = c.configManager.GetDuration("core.tick_interval")
	if c.tickInterval <= 0 {
		c.tickInterval = time.Second
	}
	c.flushBatches = c.configManager.GetInt("core.flush_batches")

	if !c.eventBus.Initialize() {
		return false
	}

	if !c.registry.Initialize() {
		return false
	}

	if !c.configManager.Initialize() {
		return false
	}

	if !c.healthMonitor.Initialize() {
		return false
	}

	if !c.bufferManager.Initialize() {
		return false
	}

	c.pipeline = NewDataPipeline(c.registry)
	if !c.pipeline.Initialize() {
		return false
	}

	c.eventBus.Subscribe(model.EventError, "core_error_log", logErrorEvent)

	c.healthMonitor.RegisterComponent(c)
	c.healthMonitor.RegisterComponent(c.eventBus)
	c.healthMonitor.RegisterComponent(c.registry)
	c.healthMonitor.RegisterComponent(c.configManager)
	c.healthMonitor.RegisterComponent(c.pipeline)
	c.healthMonitor.RegisterComponent(c.bufferManager)

	c.SetStatus(model.StatusInitialized)
	return true
}

// ConfigurePipelines builds processor chains from the "pipelines" setting,
// a map from record type to processor IDs.
func (c *Core) ConfigurePipelines() error {
	var chains map[string][]string
	if err := c.configManager.UnmarshalKey("pipelines", &chains); err != nil {
		return fmt.Errorf("decode pipelines: %w", err)
	}

	for key, processorIDs := range chains {
		recordType, ok := model.ParseRecordType(key)
		if !ok {
			return fmt.Errorf("unknown record type in pipelines: %q", key)
		}
		if err := c.pipeline.CreatePipeline(recordType, processorIDs); err != nil {
			return fmt.Errorf("pipeline %s: %w", recordType, err)
		}
	}
	return nil
}

// Start starts the core components, then processors, then outputs and
// inputs.
func (c *Core) Start() bool {
	if !c.eventBus.Start() {
		return false
	}

	if !c.registry.Start() {
		return false
	}

	if !c.configManager.Start() {
		return false
	}

	if !c.healthMonitor.Start() {
		return false
	}

	if !c.bufferManager.Start() {
		return false
	}

	if !c.pipeline.Start() {
		return false
	}

	for _, processor := range c.registry.GetProcessorPlugins() {
		if err := c.launch(processor); err != nil {
			c.PublishEvent(model.EventError, c.ID(), err)
			return false
		}
	}

	for _, output := range c.registry.GetOutputPlugins() {
		if err := c.launch(output); err != nil {
			c.PublishEvent(model.EventError, c.ID(), err)
			return false
		}
	}

	for _, input := range c.registry.GetInputPlugins() {
		if err := c.launch(input); err != nil {
			c.PublishEvent(model.EventError, c.ID(), err)
			return false
		}
	}

	c.SetStatus(model.StatusRunning)
	c.PublishEvent(model.EventComponentStatusChange, c.ID(), c.GetStatus())

	return true
}

// Stop halts every worker, hands what is still buffered to running outputs,
// then stops plugins and components in reverse order.
func (c *Core) Stop() bool {
	c.cancel()

	c.mu.Lock()
	workers := c.workers
	c.workers = make(map[string]*worker)
	c.mu.Unlock()

	for _, w := range workers {
		w.wg.Wait()
	}

	if c.registry != nil {
		for _, input := range c.registry.GetInputPlugins() {
			if input.GetStatus() == model.StatusRunning {
				c.stopInput(input)
			}
		}
		for _, output := range c.registry.GetOutputPlugins() {
			if output.GetStatus() == model.StatusRunning {
				c.sendAll(output, c.bufferManager.Drain(output.ID()))
			}
		}
	}

	if c.pipeline != nil {
		c.pipeline.Stop()
	}
	if c.bufferManager != nil {
		c.bufferManager.Stop()
	}
	if c.healthMonitor != nil {
		c.healthMonitor.Stop()
	}
	c.configManager.Stop()
	if c.registry != nil {
		c.registry.Stop()
	}
	if c.eventBus != nil {
		c.eventBus.Stop()
	}

	c.SetStatus(model.StatusStopped)
	return true
}

// RegisterPlugin validates a plugin and adds it to the registry. A plugin
// registered while the core is running is started immediately.
func (c *Core) RegisterPlugin(p model.Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	if !p.Validate() {
		return fmt.Errorf("plugin validation failed: %s", p.ID())
	}

	if !p.RegisterWithCore(c) {
		return fmt.Errorf("plugin failed to register with core: %s", p.ID())
	}

	if !c.registry.RegisterPlugin(p) {
		return fmt.Errorf("plugin registration failed: %s", p.ID())
	}

	c.healthMonitor.RegisterComponent(p)

	if c.GetStatus() == model.StatusRunning {
		return c.launch(p)
	}
	return nil
}

// StartPlugin starts a stopped plugin.
func (c *Core) StartPlugin(id string) error {
	p, exists := c.registry.GetPlugin(id)
	if !exists {
		return fmt.Errorf("plugin not found: %s", id)
	}
	if p.GetStatus() == model.StatusRunning {
		return fmt.Errorf("plugin already running: %s", id)
	}
	return c.launch(p)
}

// StopPlugin stops a plugin and its workers. Batches buffered for an output
// stay queued until it is started again.
func (c *Core) StopPlugin(id string) error {
	p, exists := c.registry.GetPlugin(id)
	if !exists {
		return fmt.Errorf("plugin not found: %s", id)
	}

	c.mu.Lock()
	w := c.workers[id]
	delete(c.workers, id)
	c.mu.Unlock()

	if w != nil {
		w.cancel()
		w.wg.Wait()
	}

	if p.GetStatus() != model.StatusRunning {
		return fmt.Errorf("plugin not running: %s", id)
	}

	var stopped bool
	if input, ok := p.(model.InputPlugin); ok {
		stopped = c.stopInput(input)
	} else {
		stopped = p.Stop()
	}
	if !stopped {
		return fmt.Errorf("failed to stop plugin: %s", id)
	}
	c.PublishEvent(model.EventComponentStatusChange, id, p.GetStatus())
	return nil
}

// RestartPlugin stops a plugin if it is running and starts it again.
func (c *Core) RestartPlugin(id string) error {
	p, exists := c.registry.GetPlugin(id)
	if !exists {
		return fmt.Errorf("plugin not found: %s", id)
	}
	if p.GetStatus() == model.StatusRunning {
		if err := c.StopPlugin(id); err != nil {
			return err
		}
	}
	return c.launch(p)
}

// launch initializes and starts a plugin and its workers.
func (c *Core) launch(p model.Plugin) error {
	if p.GetStatus() == model.StatusUninitialized && !p.Initialize() {
		return fmt.Errorf("failed to initialize plugin: %s", p.ID())
	}
	if !p.Start() {
		return fmt.Errorf("failed to start plugin: %s", p.ID())
	}

	switch plugin := p.(type) {
	case model.InputPlugin:
		c.runInput(plugin)
	case model.OutputPlugin:
		c.runOutput(plugin)
	}

	c.PublishEvent(model.EventComponentStatusChange, p.ID(), p.GetStatus())
	return nil
}

func (c *Core) newWorker(id string) (*worker, context.Context) {
	ctx, cancel := context.WithCancel(c.ctx)
	w := &worker{cancel: cancel}

	c.mu.Lock()
	if old := c.workers[id]; old != nil {
		old.cancel()
	}
	c.workers[id] = w
	c.mu.Unlock()

	return w, ctx
}

// delivery pairs the batches collected from an input with what the pipeline
// made of them.
type delivery struct {
	source *model.DataBatch
	routed *model.DataBatch
}

// runInput starts a collect goroutine and a dispatch goroutine for an input.
// Every collected batch reaches the dispatch goroutine, which drains the
// channel until the collector closes it.
func (c *Core) runInput(input model.InputPlugin) {
	w, ctx := c.newWorker(input.ID())
	ch := make(chan delivery, 100)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		defer close(ch)

		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, d := range c.collect(input, input.Collect()) {
					ch <- d
				}
			}
		}
	}()

	go func() {
		defer w.wg.Done()
		for d := range ch {
			c.dispatch(input, []delivery{d})
		}
	}()
}

// stopInput routes what the input still holds, stops it, then routes
// anything it queued in the meantime.
func (c *Core) stopInput(input model.InputPlugin) bool {
	c.dispatch(input, c.collect(input, input.Collect()))
	stopped := input.Stop()
	if d, ok := input.(model.Drainer); ok {
		c.dispatch(input, c.collect(input, d.Drain()))
	}
	return stopped
}

// runOutput starts the flush goroutine for an output.
func (c *Core) runOutput(output model.OutputPlugin) {
	w, ctx := c.newWorker(output.ID())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.FlushOutput(output, c.flushBatches)
			}
		}
	}()
}

// CollectFrom drains an input and runs each batch through the pipeline.
// Batches the pipeline filters out are not returned.
func (c *Core) CollectFrom(input model.InputPlugin) []*model.DataBatch {
	var result []*model.DataBatch
	for _, d := range c.collect(input, input.Collect()) {
		if d.routed != nil {
			result = append(result, d.routed)
		}
	}
	return result
}

// collect runs raw input batches through the pipeline. A delivery whose
// routed batch is nil was filtered out or failed processing.
func (c *Core) collect(input model.InputPlugin, raw []*model.DataBatch) []delivery {
	var result []delivery

	for _, batch := range raw {
		if batch == nil || batch.Size() == 0 {
			continue
		}

		if batch.BatchType == model.TriggerRecordType {
			metrics.TriggersTotal.WithLabelValues(input.ID()).Add(float64(batch.Size()))
			c.PublishEvent(model.EventTriggerReceived, input.ID(), map[string]interface{}{
				"batch_id":   batch.BatchID,
				"batch_size": batch.Size(),
			})
		}

		d := delivery{source: batch}
		if processed := c.ProcessBatch(batch); processed != nil && processed.Size() > 0 {
			d.routed = processed
		}
		result = append(result, d)
	}

	return result
}

// dispatch routes deliveries and acknowledges the source batches that were
// buffered or deliberately dropped. A batch refused by a full buffer stays
// unacknowledged so its source can deliver it again.
func (c *Core) dispatch(input model.InputPlugin, deliveries []delivery) {
	var done []*model.DataBatch
	for _, d := range deliveries {
		if d.routed == nil || c.Route(d.routed) {
			done = append(done, d.source)
		}
	}

	ack, ok := input.(model.Acknowledger)
	if !ok || len(done) == 0 {
		return
	}
	if err := ack.Acknowledge(done); err != nil {
		c.PublishEvent(model.EventError, input.ID(), fmt.Errorf("acknowledge: %w", err))
	}
}

// Route buffers a batch for every output that accepts its type and reports
// whether every buffer took it.
func (c *Core) Route(batch *model.DataBatch) bool {
	if batch == nil || batch.Size() == 0 {
		return true
	}

	ok := true
	for _, output := range c.getOutputsForBatchType(batch.BatchType) {
		if !c.bufferManager.Buffer(output.ID(), batch) {
			c.PublishEvent(model.EventError, c.ID(), fmt.Errorf("buffer full for output: %s", output.ID()))
			ok = false
		}
	}
	return ok
}

// FlushOutput sends up to maxBatches buffered batches to a running output
// and returns how many it accepted.
func (c *Core) FlushOutput(output model.OutputPlugin, maxBatches int) int {
	if output.GetStatus() != model.StatusRunning {
		return 0
	}
	return c.sendAll(output, c.bufferManager.Flush(output.ID(), maxBatches))
}

// FlushBuffer flushes everything buffered for the output with the given ID.
func (c *Core) FlushBuffer(outputID string) (int, error) {
	p, exists := c.registry.GetPlugin(outputID)
	if !exists {
		return 0, fmt.Errorf("plugin not found: %s", outputID)
	}
	output, ok := p.(model.OutputPlugin)
	if !ok {
		return 0, fmt.Errorf("plugin is not an output: %s", outputID)
	}
	if output.GetStatus() != model.StatusRunning {
		return 0, fmt.Errorf("output not running: %s", outputID)
	}
	return c.FlushOutput(output, 0), nil
}

func (c *Core) sendAll(output model.OutputPlugin, batches []*model.DataBatch) int {
	sent := 0
	for _, batch := range batches {
		if !output.Send(batch) {
			c.PublishEvent(model.EventError, output.ID(), fmt.Errorf("failed to send batch %s", batch.BatchID))
			continue
		}
		sent++
		c.PublishEvent(model.EventDataSent, output.ID(), map[string]interface{}{
			"batch_id":   batch.BatchID,
			"batch_type": batch.BatchType,
			"batch_size": batch.Size(),
		})
	}
	return sent
}

// getOutputsForBatchType returns the outputs that accept a record type.
// Outputs without a filter accept everything.
func (c *Core) getOutputsForBatchType(batchType model.RecordType) []model.OutputPlugin {
	var result []model.OutputPlugin
	for _, output := range c.registry.GetOutputPlugins() {
		if filter, ok := output.(model.BatchTypeFilter); ok && !filter.AcceptsBatchType(batchType) {
			continue
		}
		result = append(result, output)
	}
	return result
}

// PublishEvent publishes an event to the event bus
func (c *Core) PublishEvent(eventType model.EventType, sourceID string, data interface{}) {
	if c.eventBus == nil {
		return
	}

	c.eventBus.Publish(NewEvent(eventType, sourceID, data))
}

// ProcessBatch runs a batch through the pipeline for its record type
func (c *Core) ProcessBatch(batch *model.DataBatch) *model.DataBatch {
	if batch == nil || batch.Size() == 0 || c.pipeline == nil {
		return batch
	}

	return c.pipeline.Process(batch)
}
