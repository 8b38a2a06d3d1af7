package webx

import (
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// workerPool serves incoming connections via a pool of goroutines
// reused in FILO order, kept verbatim in spirit from the teacher's
// workerpool.go (same FILO-stack-for-warm-caches rationale), with its
// serve function rebound from fasthttp's request/response loop to
// this engine's exchange-driving loop (Server.handleConn).
type workerPool struct {
	workerChanPool sync.Pool

	logger Logger

	ready      workerChanStack
	readyMu    sync.Mutex
	workerFunc func(net.Conn)

	stopCh chan struct{}

	maxWorkersCount       int
	maxIdleWorkerDuration time.Duration

	workersCount int32
	mustStop     atomic.Bool
}

type workerChan struct {
	next        *workerChan
	ch          chan net.Conn
	lastUseTime int64
}

type workerChanStack struct {
	head, tail *workerChan
}

func (s *workerChanStack) push(ch *workerChan) {
	ch.next = s.head
	s.head = ch
	if s.tail == nil {
		s.tail = ch
	}
}

func (s *workerChanStack) pop() *workerChan {
	head := s.head
	if head == nil {
		return nil
	}
	s.head = head.next
	if s.head == nil {
		s.tail = nil
	}
	return head
}

var workerChanCap = func() int {
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

func (wp *workerPool) start() {
	if wp.stopCh != nil {
		return
	}
	wp.stopCh = make(chan struct{})
	stopCh := wp.stopCh
	wp.workerChanPool.New = func() interface{} {
		return &workerChan{ch: make(chan net.Conn, workerChanCap)}
	}
	go func() {
		for {
			wp.clean()
			select {
			case <-stopCh:
				return
			default:
				time.Sleep(wp.idleDuration())
			}
		}
	}()
}

func (wp *workerPool) stop() {
	if wp.stopCh == nil {
		return
	}
	close(wp.stopCh)
	wp.stopCh = nil

	wp.readyMu.Lock()
	for {
		ch := wp.ready.pop()
		if ch == nil {
			break
		}
		ch.ch <- nil
	}
	wp.readyMu.Unlock()
	wp.mustStop.Store(true)
}

func (wp *workerPool) idleDuration() time.Duration {
	if wp.maxIdleWorkerDuration <= 0 {
		return 10 * time.Second
	}
	return wp.maxIdleWorkerDuration
}

func (wp *workerPool) clean() {
	critical := time.Now().Add(-wp.idleDuration()).UnixNano()
	wp.readyMu.Lock()
	defer wp.readyMu.Unlock()

	current := wp.ready.head
	for current != nil {
		next := current.next
		if current.lastUseTime < critical {
			current.ch <- nil
			wp.workerChanPool.Put(current)
		} else {
			wp.ready.head = current
			break
		}
		current = next
	}
	wp.ready.tail = wp.ready.head
	if wp.ready.head == nil {
		wp.ready.tail = nil
	}
}

// serve hands c to an idle worker goroutine, spawning one if under
// maxWorkersCount, or returns false if the pool is saturated (the
// caller then closes c).
func (wp *workerPool) serve(c net.Conn) bool {
	ch := wp.getCh()
	if ch == nil {
		return false
	}
	ch.ch <- c
	return true
}

func (wp *workerPool) getCh() *workerChan {
	wp.readyMu.Lock()
	ch := wp.ready.pop()
	wp.readyMu.Unlock()

	if ch == nil && atomic.LoadInt32(&wp.workersCount) < int32(wp.maxWorkersCount) {
		atomic.AddInt32(&wp.workersCount, 1)
		vch := wp.workerChanPool.Get()
		ch = vch.(*workerChan)
		go func() {
			wp.run(ch)
			wp.workerChanPool.Put(vch)
		}()
	}
	return ch
}

func (wp *workerPool) release(ch *workerChan) bool {
	ch.lastUseTime = time.Now().UnixNano()
	if wp.mustStop.Load() {
		return false
	}
	wp.readyMu.Lock()
	wp.ready.push(ch)
	wp.readyMu.Unlock()
	return true
}

func (wp *workerPool) run(ch *workerChan) {
	for c := range ch.ch {
		if c == nil {
			break
		}
		wp.workerFunc(c)
		if !wp.release(ch) {
			break
		}
	}
	atomic.AddInt32(&wp.workersCount, -1)
}
