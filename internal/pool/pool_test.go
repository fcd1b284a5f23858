package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(1 * time.Second)
		require.NotNil(t, timer1)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		require.NotNil(t, timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(50 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(150 * time.Millisecond)
		tt := <-timer2.C
		assert.GreaterOrEqual(t, tt.Sub(begin), 140*time.Millisecond)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	ctx := context.Background()

	begin := time.Now()
	assert.True(t, Sleep(ctx, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 25*time.Millisecond)

	assert.True(t, Sleep(ctx, 0))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, Sleep(cancelled, time.Second))
	assert.False(t, Sleep(cancelled, 0))
}

func TestBufferPool(t *testing.T) {
	bp := GetBuffer(10)
	require.NotNil(t, bp)
	assert.Empty(t, *bp)
	assert.GreaterOrEqual(t, cap(*bp), minBufferCap)

	*bp = append(*bp, "hello"...)
	PutBuffer(bp)

	bp = GetBuffer(4096)
	assert.Empty(t, *bp)
	assert.GreaterOrEqual(t, cap(*bp), 4096)
	PutBuffer(bp)

	// oversized and nil buffers are dropped silently
	big := make([]byte, 0, maxPooledCap+1)
	PutBuffer(&big)
	PutBuffer(nil)
}
