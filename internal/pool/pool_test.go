package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPool_RunsAllTasks 测试所有提交的任务都会执行
func TestPool_RunsAllTasks(t *testing.T) {
	p := New(4, 8)

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}
	wg.Wait()
	p.Close()

	require.Equal(t, int64(100), atomic.LoadInt64(&count))
}

// TestPool_BoundedConcurrency 测试并发 worker 数不超过上限
func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	p := New(workers, 0)
	defer p.Close()

	var current, peak int64
	var wg sync.WaitGroup

	// 队列长度为 workers，提交 workers 个长任务占满池，
	// 后续任务会在调用方执行，但池内并发不会超过 workers
	block := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			<-block
			atomic.AddInt64(&current, -1)
		})
	}

	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(workers))
	close(block)
	wg.Wait()
}

// TestPool_CallerRunsWhenSaturated 测试队列满时任务在调用方执行
func TestPool_CallerRunsWhenSaturated(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	// 占住唯一的 worker，并填满长度为 1 的队列
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	p.Submit(func() { defer wg.Done(); <-block })
	p.Submit(func() { defer wg.Done(); <-block })

	// 池已饱和：这次 Submit 必须同步执行，否则会一直阻塞在这里
	done := make(chan struct{})
	go func() {
		p.Submit(func() { close(done) })
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("saturated Submit did not run the task on the caller")
	}

	close(block)
	wg.Wait()
}
