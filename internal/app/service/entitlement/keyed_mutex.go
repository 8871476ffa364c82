package entitlement

import "sync"

// keyedMutex serializes critical sections per subscription id. Entries are
// tiny and live for the process lifetime; the working set is bounded by the
// number of subscriptions a single instance actively serves.
type keyedMutex struct {
	mus sync.Map // map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
