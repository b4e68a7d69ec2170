package pool

import "sync"

// Pool 固定大小 worker 池，带有界任务队列
// 队列满时 Submit 降级为在调用方 goroutine 上同步执行（不拒绝任务）：
// 这把对厂家 API 的出站并发压在 workers+queue 之内，过载时自然减速
type Pool struct {
	tasks     chan func()
	workers   int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 创建并启动 worker 池
// workers: 并发 worker 数（<=0 时取 1）
// queue: 任务队列长度（<=0 时取 workers）
func New(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers
	}

	p := &Pool{
		tasks:   make(chan func(), queue),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit 提交任务；队列满时在调用方执行
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	select {
	case p.tasks <- task:
	default:
		task()
	}
}

// Close 关闭队列并等待所有 worker 退出，已入队任务会执行完
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
