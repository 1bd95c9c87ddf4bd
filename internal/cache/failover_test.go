package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockStore) DeletePrefix(ctx context.Context, prefix string) error {
	return m.Called(ctx, prefix).Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCache(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	c := NewFailoverCache(primary, fallback, &logger)
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, "k").Return([]byte("v"), true, nil).Once()
		got, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), got)
		assert.False(t, c.Degraded())
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("Set", ctx, "k", []byte("v"), time.Minute).Return(errors.New("conn refused")).Once()
		fallback.On("Set", ctx, "k", []byte("v"), time.Minute).Return(nil).Once()
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		assert.True(t, c.Degraded())
	})

	t.Run("StaysOnFallbackUntilReprobe", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "ip", 5, time.Hour).Return(true, nil).Once()
		allowed, err := c.CheckRateLimit(ctx, "ip", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("DeletePrefixClearsBoth", func(t *testing.T) {
		fallback.On("DeletePrefix", ctx, "villas:").Return(nil).Once()
		require.NoError(t, c.DeletePrefix(ctx, "villas:"))
	})

	t.Run("RecoveryReplaysMissedInvalidation", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("DeletePrefix", ctx, "villas:").Return(errors.New("still down")).Once()
		fallback.On("Get", ctx, "k").Return([]byte("mem"), true, nil).Once()
		got, _, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("mem"), got)
		assert.True(t, c.Degraded())
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		var calls []string
		primary.On("DeletePrefix", ctx, "villas:").Return(nil).Once().
			Run(func(mock.Arguments) { calls = append(calls, "delete") })
		primary.On("Get", ctx, "k").Return([]byte("v2"), true, nil).Twice().
			Run(func(mock.Arguments) { calls = append(calls, "get") })
		got, _, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
		assert.False(t, c.Degraded())

		_, _, err = c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []string{"delete", "get", "get"}, calls, "stale prefix is cleared once, before the first read")
	})

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
