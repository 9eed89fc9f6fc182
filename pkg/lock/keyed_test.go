package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("conv-1")
			defer km.Unlock("conv-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("conv-1")
	defer km.Unlock("conv-1")

	done := make(chan struct{})
	go func() {
		km.Lock("conv-2")
		km.Unlock("conv-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("不同 key 的加锁被阻塞")
	}
}

func TestKeyedMutexReclaimsIdleEntries(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("conv-1")
	km.Unlock("conv-1")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}

func TestKeyedMutexUnlockUnheldKeyPanics(t *testing.T) {
	km := NewKeyedMutex()
	require.Panics(t, func() {
		km.Unlock("never-locked")
	})
}
