// Package lock 提供了按 key 互斥的锁。
// 同一个对话的追加操作必须串行执行，不同对话之间互不阻塞，
// 因此使用按对话 ID 分键的互斥锁而不是一把全局锁。
package lock

import "sync"

// KeyedMutex 为每个 key 维护一把引用计数的互斥锁。
// 没有持有者和等待者的 key 会被立即回收，map 不会随 key 空间无限增长。
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 创建一个新的 KeyedMutex。
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock 获取 key 对应的互斥锁，必要时阻塞等待。
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock 释放 key 对应的互斥锁。对未持有的 key 调用会 panic。
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("lock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
