package registry

import "sync"

// changeNotifier fans a change signal out to subscribers. Sends never
// block: each subscriber channel is buffered with capacity 1 and a signal
// is dropped when the previous one is still pending, which collapses
// bursts into a single wake-up.
type changeNotifier struct {
	mu   sync.Mutex
	subs []chan struct{}
}

func (cn *changeNotifier) subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	cn.mu.Lock()
	cn.subs = append(cn.subs, ch)
	cn.mu.Unlock()
	return ch
}

func (cn *changeNotifier) notify() {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	for _, ch := range cn.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
