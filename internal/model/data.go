package model

import (
	"time"

	"github.com/google/uuid"
)

// DataBatch is a collection of triggers or products moving through the pipeline
type DataBatch struct {
	BatchID    string
	SourceID   string
	BatchType  RecordType
	Triggers   []TriggerMessage
	Products   []Product
	Timestamp  time.Time
	Attributes map[string]interface{}
}

// NewDataBatch creates a new data batch of the specified type
func NewDataBatch(batchType RecordType) *DataBatch {
	return &DataBatch{
		BatchID:    uuid.NewString(),
		BatchType:  batchType,
		Triggers:   make([]TriggerMessage, 0),
		Products:   make([]Product, 0),
		Timestamp:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
}

// NewTriggerBatch wraps a single queue message in its own batch.
func NewTriggerBatch(sourceID string, msg TriggerMessage) *DataBatch {
	batch := NewDataBatch(TriggerRecordType)
	batch.SourceID = sourceID
	batch.AddTrigger(msg)
	return batch
}

// AddTrigger adds a queue message to the batch
func (b *DataBatch) AddTrigger(msg TriggerMessage) {
	b.Triggers = append(b.Triggers, msg)
}

// AddProducts appends products to the batch
func (b *DataBatch) AddProducts(products ...Product) {
	b.Products = append(b.Products, products...)
}

// Size returns the number of items of the batch's own type
func (b *DataBatch) Size() int {
	switch b.BatchType {
	case TriggerRecordType:
		return len(b.Triggers)
	case ProductRecordType:
		return len(b.Products)
	}
	return 0
}

// Derive starts a new batch of another type that keeps this batch's source
// and attributes.
func (b *DataBatch) Derive(batchType RecordType) *DataBatch {
	next := NewDataBatch(batchType)
	next.SourceID = b.SourceID
	for k, v := range b.Attributes {
		next.Attributes[k] = v
	}
	next.Attributes["parent_batch_id"] = b.BatchID
	return next
}

// ToMap converts the data batch to a map representation
func (b *DataBatch) ToMap() map[string]interface{} {
	triggers := make([]map[string]interface{}, len(b.Triggers))
	for i, t := range b.Triggers {
		triggers[i] = t.ToMap()
	}

	products := make([]map[string]interface{}, len(b.Products))
	for i, p := range b.Products {
		products[i] = p.ToMap()
	}

	return map[string]interface{}{
		"batch_id":   b.BatchID,
		"source_id":  b.SourceID,
		"batch_type": b.BatchType,
		"timestamp":  b.Timestamp,
		"triggers":   triggers,
		"products":   products,
		"attributes": b.Attributes,
	}
}
