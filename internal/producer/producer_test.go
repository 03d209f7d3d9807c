package producer

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/sliink/queuesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceCounts(t *testing.T) {
	p := New(nil)

	for _, n := range []int{0, 1, 2, 17, 100, 1000} {
		products, err := p.Produce("any-message", n)
		require.NoError(t, err)
		assert.Len(t, products, n)
	}
}

func TestProduceDefaultBatch(t *testing.T) {
	products, err := New(nil).Produce("any-message", DefaultBatchSize)
	require.NoError(t, err)
	require.Len(t, products, 100)

	for i, product := range products {
		assert.Equal(t, i+1, product.ProductID)
		assert.Equal(t, "test", product.Name)
		assert.Equal(t, 100*(i+1), product.Cost)
	}
}

func TestProduceEmpty(t *testing.T) {
	products, err := New(nil).Produce("", 0)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestProduceSingle(t *testing.T) {
	products, err := New(nil).Produce("msg", 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, model.Product{ProductID: 1, Name: "test", Cost: 100}, products[0])
}

func TestProduceNegativeCount(t *testing.T) {
	products, err := New(nil).Produce("msg", -1)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
	assert.Nil(t, products)
}

func TestProduceCountLimit(t *testing.T) {
	products, err := New(nil).Produce("msg", MaxBatchSize)
	require.NoError(t, err)
	assert.Len(t, products, MaxBatchSize)

	for _, n := range []int{MaxBatchSize + 1, math.MaxInt32, math.MaxInt} {
		products, err := New(nil).Produce("msg", n)
		assert.ErrorIs(t, err, ErrInvalidBatchSize, n)
		assert.Nil(t, products)
	}
}

func TestProduceUniqueIDs(t *testing.T) {
	products, err := New(SequentialFactory{StartID: 500, NamePrefix: "test", CostStep: 100}).Produce("msg", 250)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, product := range products {
		assert.False(t, seen[product.ProductID], "duplicate id %d", product.ProductID)
		seen[product.ProductID] = true
	}
	assert.Equal(t, 500, products[0].ProductID)
	assert.Equal(t, 749, products[249].ProductID)
}

func TestProduceIgnoresPayload(t *testing.T) {
	p := New(nil)
	base, err := p.Produce("", 25)
	require.NoError(t, err)

	for _, payload := range []string{"a", "{\"count\": 3}", "testqueue message", "\x00\xff"} {
		got, err := p.Produce(payload, 25)
		require.NoError(t, err)
		assert.Equal(t, base, got, payload)
	}
}

func TestProduceRejectsInvalidFactoryOutput(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: i}
		}))
		_, err := p.Produce("msg", 3)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("negative cost", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: i, Name: "x", Cost: -1}
		}))
		_, err := p.Produce("msg", 1)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("name longer than the column", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: i, Name: strings.Repeat("n", 101)}
		}))
		_, err := p.Produce("msg", 1)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("multibyte name at the column limit", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: i, Name: strings.Repeat("é", 100)}
		}))
		_, err := p.Produce("msg", 1)
		assert.NoError(t, err)
	})

	t.Run("id past the integer column", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: math.MaxInt32 + 1, Name: "x"}
		}))
		_, err := p.Produce("msg", 1)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("cost past the integer column", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: 1, Name: "x", Cost: math.MaxInt32 + 1}
		}))
		_, err := p.Produce("msg", 1)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("duplicate id", func(t *testing.T) {
		p := New(FactoryFunc(func(i int) model.Product {
			return model.Product{ProductID: 1, Name: "x"}
		}))
		_, err := p.Produce("msg", 2)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestSequentialFactoryOverrides(t *testing.T) {
	f := SequentialFactory{StartID: 10, NamePrefix: "widget", CostStep: 3}
	assert.Equal(t, model.Product{ProductID: 12, Name: "widget", Cost: 36}, f.Build(2))
}

func TestSequentialFactoryTakesZeroLiterally(t *testing.T) {
	f := SequentialFactory{StartID: 0, NamePrefix: "test", CostStep: 0}
	products, err := New(f).Produce("msg", 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Product{
		{ProductID: 0, Name: "test", Cost: 0},
		{ProductID: 1, Name: "test", Cost: 0},
		{ProductID: 2, Name: "test", Cost: 0},
	}, products)
}

func TestDefaultFactory(t *testing.T) {
	assert.Equal(t, SequentialFactory{StartID: 1, NamePrefix: "test", CostStep: 100}, DefaultFactory())
	assert.Equal(t, model.Product{ProductID: 1, Name: "test", Cost: 100}, DefaultFactory().Build(0))
}

func TestSequentialFactoryCostOverflow(t *testing.T) {
	f := SequentialFactory{StartID: 30_000_000, NamePrefix: "test", CostStep: 100}
	assert.Greater(t, f.Build(0).Cost, math.MaxInt32)

	_, err := New(f).Produce("msg", 1)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.ErrorIs(t, f.Check(1), ErrInvalidRecord)
}

func TestSequentialFactorySaturates(t *testing.T) {
	f := SequentialFactory{StartID: math.MaxInt, NamePrefix: "test", CostStep: math.MaxInt}
	p := f.Build(5)
	assert.Equal(t, math.MaxInt, p.ProductID)
	assert.Equal(t, math.MaxInt, p.Cost)

	f = SequentialFactory{StartID: 2, NamePrefix: "test", CostStep: math.MinInt}
	assert.Equal(t, math.MinInt, f.Build(0).Cost)

	_, err := New(f).Produce("msg", 1)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSequentialFactoryCheck(t *testing.T) {
	assert.NoError(t, DefaultFactory().Check(0))
	assert.NoError(t, DefaultFactory().Check(DefaultBatchSize))
	assert.NoError(t, DefaultFactory().Check(MaxBatchSize))
	assert.ErrorIs(t, DefaultFactory().Check(-1), ErrInvalidBatchSize)
	assert.ErrorIs(t, DefaultFactory().Check(MaxBatchSize+1), ErrInvalidBatchSize)

	// Id 21_474_837 is the first to price past the column at step 100.
	near := SequentialFactory{StartID: 21_474_000, NamePrefix: "test", CostStep: 100}
	assert.NoError(t, near.Check(837))
	assert.ErrorIs(t, near.Check(838), ErrInvalidRecord)

	assert.ErrorIs(t, SequentialFactory{StartID: 1, CostStep: 1}.Check(1), ErrInvalidRecord)
	assert.ErrorIs(t, SequentialFactory{StartID: -5, NamePrefix: "test", CostStep: 1}.Check(1), ErrInvalidRecord)
	assert.ErrorIs(t, SequentialFactory{StartID: math.MaxInt32, NamePrefix: "test", CostStep: 0}.Check(2), ErrInvalidRecord)
}

func TestProduceConcurrent(t *testing.T) {
	p := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			products, err := p.Produce("msg", 100)
			assert.NoError(t, err)
			assert.Len(t, products, 100)
		}()
	}
	wg.Wait()
}
