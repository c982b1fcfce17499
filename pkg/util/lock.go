package util

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

const noOwner = 0

// ReentryLock lets the goroutine holding it lock again without
// blocking on itself. every Lock needs its own Unlock.
type ReentryLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner atomic.Int64
	depth atomic.Uint64
}

func NewReentryLock() *ReentryLock {
	lock := &ReentryLock{}
	lock.cond = sync.NewCond(&lock.mu)
	return lock
}

func (lock *ReentryLock) Lock() {
	rid := goid.Get()
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.owner.Load() == rid {
		lock.depth.Add(1)
		return
	}
	for lock.owner.Load() != noOwner {
		lock.cond.Wait()
	}
	lock.owner.Store(rid)
	lock.depth.Store(1)
}

func (lock *ReentryLock) Unlock() {
	rid := goid.Get()
	release := false
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		if release {
			lock.cond.Signal()
		}
	}()

	if lock.depth.Load() == 0 || lock.owner.Load() != rid {
		panic("unlock of unlocked mutex")
	}
	lock.depth.Add(^uint64(0))
	if lock.depth.Load() == 0 {
		lock.owner.Store(noOwner)
		release = true
	}
}

var _ sync.Locker = (*ReentryLock)(nil)
