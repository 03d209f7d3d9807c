package core

import (
	"errors"
	"sync"

	"github.com/sliink/queuesync/internal/model"
)

// PipelineStage represents a single processing step
type PipelineStage struct {
	Processor model.ProcessorPlugin
	NextStage *PipelineStage
}

// Process executes the processing stage on a data batch
func (s *PipelineStage) Process(batch *model.DataBatch) *model.DataBatch {
	if s == nil || batch == nil {
		return batch
	}

	processed := s.Processor.Process(batch)

	// An empty result ends the chain.
	if processed == nil || processed.Size() == 0 {
		return nil
	}

	if s.NextStage != nil {
		return s.NextStage.Process(processed)
	}

	return processed
}

// DataPipeline holds one processor chain per record type
type DataPipeline struct {
	pipelines map[model.RecordType]*PipelineStage
	registry  *PluginRegistry
	mutex     sync.RWMutex
	BaseComponent
}

// NewDataPipeline creates a new data pipeline
func NewDataPipeline(registry *PluginRegistry) *DataPipeline {
	return &DataPipeline{
		pipelines:     make(map[model.RecordType]*PipelineStage),
		registry:      registry,
		BaseComponent: NewBaseComponent("data_pipeline", "Data Pipeline"),
	}
}

// Initialize prepares the data pipeline for operation
func (p *DataPipeline) Initialize() bool {
	if p.registry == nil {
		return false
	}

	p.SetStatus(model.StatusInitialized)
	return true
}

// Start begins data pipeline operation
func (p *DataPipeline) Start() bool {
	p.SetStatus(model.StatusRunning)
	return true
}

// Stop clears all chains
func (p *DataPipeline) Stop() bool {
	p.mutex.Lock()
	p.pipelines = make(map[model.RecordType]*PipelineStage)
	p.mutex.Unlock()

	p.SetStatus(model.StatusStopped)
	return true
}

// CreatePipeline builds the processor chain for a record type
func (p *DataPipeline) CreatePipeline(recordType model.RecordType, processorIDs []string) error {
	if len(processorIDs) == 0 {
		return errors.New("no processors specified for pipeline")
	}

	var firstStage *PipelineStage
	var currentStage *PipelineStage

	for _, processorID := range processorIDs {
		plugin, exists := p.registry.GetPlugin(processorID)
		if !exists {
			return errors.New("processor plugin not found: " + processorID)
		}

		processor, ok := plugin.(model.ProcessorPlugin)
		if !ok {
			return errors.New("plugin is not a processor: " + processorID)
		}

		stage := &PipelineStage{Processor: processor}

		if firstStage == nil {
			firstStage = stage
		} else {
			currentStage.NextStage = stage
		}
		currentStage = stage
	}

	p.mutex.Lock()
	p.pipelines[recordType] = firstStage
	p.mutex.Unlock()
	return nil
}

// Stages returns the processor IDs of each chain, in order.
func (p *DataPipeline) Stages() map[model.RecordType][]string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	result := make(map[model.RecordType][]string, len(p.pipelines))
	for recordType, stage := range p.pipelines {
		for s := stage; s != nil; s = s.NextStage {
			result[recordType] = append(result[recordType], s.Processor.ID())
		}
	}
	return result
}

// Process sends a data batch through the chain for its type. Batches with
// no chain pass through unchanged.
func (p *DataPipeline) Process(batch *model.DataBatch) *model.DataBatch {
	if batch == nil || batch.Size() == 0 {
		return nil
	}

	if p.GetStatus() != model.StatusRunning {
		return nil
	}

	p.mutex.RLock()
	pipeline, exists := p.pipelines[batch.BatchType]
	p.mutex.RUnlock()

	if !exists || pipeline == nil {
		return batch
	}

	return pipeline.Process(batch)
}
