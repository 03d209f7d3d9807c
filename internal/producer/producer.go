// Package producer builds the fixed-size batch of products written for each
// queue trigger.
package producer

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/sqltable"
)

// DefaultBatchSize is the number of products produced per trigger.
const DefaultBatchSize = 100

// MaxBatchSize bounds the count accepted by Produce.
const MaxBatchSize = 100_000

var (
	// ErrInvalidBatchSize is returned for a count outside [0, MaxBatchSize].
	ErrInvalidBatchSize = errors.New("producer: batch size out of range")
	// ErrInvalidRecord is returned when the factory builds a row the sink
	// would reject.
	ErrInvalidRecord = errors.New("producer: invalid record")
)

// RecordFactory builds the record at a zero-based position in a batch.
type RecordFactory interface {
	Build(index int) model.Product
}

// FactoryFunc adapts a function to RecordFactory.
type FactoryFunc func(index int) model.Product

// Build calls f(index).
func (f FactoryFunc) Build(index int) model.Product {
	return f(index)
}

// SequentialFactory numbers products from StartID and prices them at
// CostStep per id. Fields are used as given, zero included; DefaultFactory
// returns the standard settings.
type SequentialFactory struct {
	StartID    int
	NamePrefix string
	CostStep   int
}

// DefaultFactory numbers products from 1, names them "test" and prices
// them at 100 per id.
func DefaultFactory() SequentialFactory {
	return SequentialFactory{StartID: 1, NamePrefix: "test", CostStep: 100}
}

// Build returns the product at position index. Arithmetic that overflows
// int saturates, so the result fails validation instead of wrapping.
func (f SequentialFactory) Build(index int) model.Product {
	id := addSat(f.StartID, index)
	return model.Product{ProductID: id, Name: f.NamePrefix, Cost: mulSat(f.CostStep, id)}
}

// Check reports whether every product of a count-sized batch fits the
// sink. Ids and costs are linear in the index, so the first and last
// records bound the rest.
func (f SequentialFactory) Check(count int) error {
	if count < 0 || count > MaxBatchSize {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, count)
	}
	if count == 0 {
		return nil
	}
	if err := validate(f.Build(0)); err != nil {
		return fmt.Errorf("record 0: %w", err)
	}
	if err := validate(f.Build(count - 1)); err != nil {
		return fmt.Errorf("record %d: %w", count-1, err)
	}
	return nil
}

func addSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

func mulSat(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		if (a < 0) != (b < 0) {
			return math.MinInt
		}
		return math.MaxInt
	}
	return p
}

// Producer turns one trigger into a batch of products. It holds no mutable
// state and may be shared between goroutines.
type Producer struct {
	factory RecordFactory
}

// New returns a producer backed by factory, or by DefaultFactory when nil.
func New(factory RecordFactory) *Producer {
	if factory == nil {
		factory = DefaultFactory()
	}
	return &Producer{factory: factory}
}

// Produce returns exactly count products in insertion order. The payload is
// the trigger message; it does not influence the result.
func (p *Producer) Produce(payload string, count int) ([]model.Product, error) {
	if count < 0 || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, count)
	}

	products := make([]model.Product, 0, count)
	seen := make(map[int]struct{}, count)
	for i := 0; i < count; i++ {
		product := p.factory.Build(i)
		if err := validate(product); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[product.ProductID]; dup {
			return nil, fmt.Errorf("record %d: %w: duplicate id %d", i, ErrInvalidRecord, product.ProductID)
		}
		seen[product.ProductID] = struct{}{}
		products = append(products, product)
	}

	return products, nil
}

// validate checks a product against the column ranges of the products
// table.
func validate(p model.Product) error {
	if p.ProductID < sqltable.MinInt || p.ProductID > sqltable.MaxInt {
		return fmt.Errorf("%w: id %d out of range", ErrInvalidRecord, p.ProductID)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: empty name for id %d", ErrInvalidRecord, p.ProductID)
	}
	if n := utf8.RuneCountInString(p.Name); n > sqltable.MaxNameLength {
		return fmt.Errorf("%w: name of %d characters for id %d", ErrInvalidRecord, n, p.ProductID)
	}
	if p.Cost < 0 {
		return fmt.Errorf("%w: negative cost %d for id %d", ErrInvalidRecord, p.Cost, p.ProductID)
	}
	if p.Cost > sqltable.MaxInt {
		return fmt.Errorf("%w: cost %d out of range for id %d", ErrInvalidRecord, p.Cost, p.ProductID)
	}
	return nil
}
