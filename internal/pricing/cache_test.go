package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/provider"
)

type mockSizeLister struct {
	mock.Mock
}

func (m *mockSizeLister) ListSizes(ctx context.Context) ([]provider.Size, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Size), args.Error(1)
}

func testSizes() []provider.Size {
	return []provider.Size{
		{Slug: "s-2vcpu-4gb", VCPUs: 2, Memory: 4096, Disk: 80, PriceMonthly: 24},
		{Slug: "s-4vcpu-8gb", VCPUs: 4, Memory: 8192, Disk: 160, PriceMonthly: 48},
	}
}

func TestCache_GetPrice(t *testing.T) {
	t.Run("should fetch on first lookup and serve from cache within TTL", func(t *testing.T) {
		gateway := &mockSizeLister{}
		cache := New(gateway, logger.Default())

		gateway.On("ListSizes", mock.Anything).Return(testSizes(), nil).Once()

		price, err := cache.GetPrice(context.Background(), "s-2vcpu-4gb")
		assert.NoError(t, err)
		assert.Equal(t, float64(24), price.PriceMonthly)

		// Second lookup within the TTL performs no upstream call
		price, err = cache.GetPrice(context.Background(), "s-2vcpu-4gb")
		assert.NoError(t, err)
		assert.Equal(t, float64(24), price.PriceMonthly)

		gateway.AssertNumberOfCalls(t, "ListSizes", 1)
	})

	t.Run("should refetch exactly once after TTL expiry", func(t *testing.T) {
		now := time.Now()
		gateway := &mockSizeLister{}
		cache := New(gateway, logger.Default(), WithClock(func() time.Time { return now }))

		gateway.On("ListSizes", mock.Anything).Return(testSizes(), nil)

		_, err := cache.GetPrice(context.Background(), "s-2vcpu-4gb")
		assert.NoError(t, err)

		now = now.Add(DefaultTTL + time.Minute)

		_, err = cache.GetPrice(context.Background(), "s-2vcpu-4gb")
		assert.NoError(t, err)

		gateway.AssertNumberOfCalls(t, "ListSizes", 2)
	})

	t.Run("should not cache unknown slugs", func(t *testing.T) {
		gateway := &mockSizeLister{}
		cache := New(gateway, logger.Default())

		gateway.On("ListSizes", mock.Anything).Return(testSizes(), nil)

		_, err := cache.GetPrice(context.Background(), "s-512vcpu-1tb")
		assert.ErrorIs(t, err, errors.ErrNotFound)

		// The miss must not be cached; every lookup fetches again
		_, err = cache.GetPrice(context.Background(), "s-512vcpu-1tb")
		assert.ErrorIs(t, err, errors.ErrNotFound)

		gateway.AssertNumberOfCalls(t, "ListSizes", 2)
	})

	t.Run("should propagate upstream failures", func(t *testing.T) {
		gateway := &mockSizeLister{}
		cache := New(gateway, logger.Default())

		gateway.On("ListSizes", mock.Anything).Return(nil, errors.NewProviderError("list sizes", 502, "bad gateway"))

		_, err := cache.GetPrice(context.Background(), "s-2vcpu-4gb")
		assert.Error(t, err)
		assert.True(t, errors.IsProviderError(err))
	})
}
