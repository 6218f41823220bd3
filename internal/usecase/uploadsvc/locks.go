package uploadsvc

import "sync"

// keyedMutex выдаёт отдельный RWMutex на каждый ключ и удаляет его, когда ждущих не осталось.
// Приём частей берёт разделяемую блокировку, сборка и удаление загрузки — эксклюзивную.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.RWMutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock эксклюзивно блокирует key и возвращает функцию разблокировки.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	m := k.acquire(key)
	m.Lock()

	return func() {
		m.Unlock()
		k.release(key, m)
	}
}

// RLock блокирует key на чтение: параллельные RLock не мешают друг другу.
func (k *keyedMutex) RLock(key string) (unlock func()) {
	m := k.acquire(key)
	m.RLock()

	return func() {
		m.RUnlock()
		k.release(key, m)
	}
}

func (k *keyedMutex) acquire(key string) *refMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	return m
}

func (k *keyedMutex) release(key string, m *refMutex) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
