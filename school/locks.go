/*
locks.go - Per-entity critical sections

PURPOSE:
  Serializes concurrent mutations per entity, not globally. The capacity
  manager takes the lock for one session ID; the reconciler takes the lock
  for one enrollment ID. Operations on different sessions or different
  enrollments never contend.

WHY A KEYED MUTEX:
  The capacity check and the seat insert must be one indivisible step
  relative to other enrolls on the SAME session. A naive read-then-write
  lets N concurrent calls all observe a free seat and overshoot capacity.
  The lock plus the store transaction closes that window; the store's
  unique membership index is the final backstop.

  Lock entries are never removed: the universe of live sessions and
  enrollments is small and bounded, so the map stays small in practice.
*/
package school

import "sync"

// keyedMutex provides one mutex per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. The returned
// function releases it.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
