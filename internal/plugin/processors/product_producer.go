package processors

import (
	"fmt"

	"github.com/sliink/queuesync/internal/metrics"
	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
	"github.com/sliink/queuesync/internal/producer"
)

// ProductProducer turns each TRIGGER batch into a PRODUCT batch of count
// products per trigger.
type ProductProducer struct {
	plugin.BasePlugin
	count    int
	producer *producer.Producer
}

// NewProductProducer creates a new product producer plugin
func NewProductProducer(id string) *ProductProducer {
	return &ProductProducer{
		BasePlugin: plugin.NewBasePlugin(id, "Product Producer", model.ProcessorPluginType),
		count:      producer.DefaultBatchSize,
	}
}

// Validate rejects settings that are not whole numbers or that would build
// rows the products table cannot hold.
func (p *ProductProducer) Validate() bool {
	_, _, err := p.settings()
	return err == nil
}

// Initialize builds the producer from count and the factory settings
func (p *ProductProducer) Initialize() bool {
	count, factory, err := p.settings()
	if err != nil {
		return false
	}

	p.count = count
	p.producer = producer.New(factory)

	p.SetStatus(model.StatusInitialized)
	return true
}

func (p *ProductProducer) settings() (int, producer.SequentialFactory, error) {
	defaults := producer.DefaultFactory()
	factory := producer.SequentialFactory{NamePrefix: p.ConfigString("name_prefix", defaults.NamePrefix)}

	count, err := p.ConfigIntE("count", producer.DefaultBatchSize)
	if err != nil {
		return 0, factory, err
	}
	if factory.StartID, err = p.ConfigIntE("start_id", defaults.StartID); err != nil {
		return 0, factory, err
	}
	if factory.CostStep, err = p.ConfigIntE("cost_step", defaults.CostStep); err != nil {
		return 0, factory, err
	}
	if err := factory.Check(count); err != nil {
		return 0, factory, fmt.Errorf("%s: %w", p.ID(), err)
	}
	return count, factory, nil
}

// Start begins producer operation
func (p *ProductProducer) Start() bool {
	p.SetStatus(model.StatusRunning)
	return true
}

// Stop halts producer operation
func (p *ProductProducer) Stop() bool {
	p.SetStatus(model.StatusStopped)
	return true
}

// Count returns the number of products built per trigger.
func (p *ProductProducer) Count() int {
	return p.count
}

// Process produces products for every trigger in the batch. Several triggers
// are merged by product id with the last trigger winning. A producer error
// drops the batch and is published as an ERROR event.
func (p *ProductProducer) Process(batch *model.DataBatch) *model.DataBatch {
	if batch == nil || batch.Size() == 0 || batch.BatchType != model.TriggerRecordType {
		return batch
	}

	if p.GetStatus() != model.StatusRunning {
		return batch
	}

	result := batch.Derive(model.ProductRecordType)
	position := make(map[int]int)

	for _, msg := range batch.Triggers {
		products, err := p.producer.Produce(msg.Payload, p.count)
		if err != nil {
			p.PublishError(fmt.Errorf("trigger %s: %w", msg.ID, err))
			return nil
		}

		for _, product := range products {
			if i, seen := position[product.ProductID]; seen {
				result.Products[i] = product
				continue
			}
			position[product.ProductID] = len(result.Products)
			result.AddProducts(product)
		}

		result.Attributes["trigger_id"] = msg.ID
		result.Attributes["queue"] = msg.Queue
		for k, v := range msg.Attributes {
			result.Attributes["trigger."+k] = v
		}
	}
	result.Attributes["trigger_count"] = len(batch.Triggers)

	metrics.RecordsProduced.WithLabelValues(p.ID()).Add(float64(result.Size()))
	p.PublishEvent(model.EventRecordsProduced, map[string]interface{}{
		"batch_id":      result.BatchID,
		"trigger_count": len(batch.Triggers),
		"record_count":  result.Size(),
	})

	return result
}
