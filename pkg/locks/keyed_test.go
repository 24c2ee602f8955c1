package locks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(context.Background(), "phone:5035551234", func(ctx context.Context) error {
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexCancelledContext(t *testing.T) {
	m := NewKeyedMutex()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := m.WithLock(ctx, "key", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran)
}

func TestKeyedMutexPropagatesError(t *testing.T) {
	m := NewKeyedMutex()
	sentinel := assert.AnError

	err := m.WithLock(context.Background(), "key", func(ctx context.Context) error {
		return sentinel
	})
	assert.Equal(t, sentinel, err)
}

func TestKeyHashDeterministic(t *testing.T) {
	assert.Equal(t, KeyHash("merge:a:b"), KeyHash("merge:a:b"))
	assert.NotEqual(t, KeyHash("merge:a:b"), KeyHash("merge:a:c"))
}
