package scheduler

import (
	"sync"
)

// keyLocks 按键互斥锁集合
// 同一 (subject, vital_type) 键位同一时刻只允许一次评估
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// tryLock 获取键锁；已被持有时返回 false，调用方跳过本周期
func (k *keyLocks) tryLock(key string) bool {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	return lock.TryLock()
}

// unlock 释放键锁
func (k *keyLocks) unlock(key string) {
	k.mu.Lock()
	lock := k.locks[key]
	k.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
