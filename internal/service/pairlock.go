package service

import "sync"

// pairLocks hands out one mutex per unordered pair of entities, so two
// requests touching the same edge run one after the other while requests
// on unrelated pairs never wait for each other.
//
// Entries are reference counted and dropped when the last holder unlocks,
// so the map only ever holds the pairs currently in use.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*pairLock)}
}

// lock blocks until the pair (a, b) is free and returns the matching
// unlock. lock(a, b) and lock(b, a) share a mutex.
func (p *pairLocks) lock(a, b string) (unlock func()) {
	key := pairKey(a, b)

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *pairLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func userKey(username string) string { return "user:" + username }

func playlistKey(name string) string { return "playlist:" + name }
