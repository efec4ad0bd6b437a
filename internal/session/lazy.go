package session

import (
	"context"
	"io"
	"sync"
)

// OpenFunc establishes the durable medium behind a Lazy store.
type OpenFunc func(ctx context.Context) (Store, error)

// Lazy is the process-wide store. The medium is opened on first use; a failed
// open is reported as a storage error and retried on the next call. Close
// waits for in-flight calls to finish before releasing the medium.
type Lazy struct {
	mu    sync.RWMutex
	open  OpenFunc
	store Store
}

// NewLazy wraps open without calling it.
func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open}
}

// acquire returns the open store with the read lock held. The caller must
// call release once the delegated call returns.
func (l *Lazy) acquire(ctx context.Context) (Store, func(), error) {
	for {
		l.mu.RLock()
		if l.store != nil {
			return l.store, l.mu.RUnlock, nil
		}
		l.mu.RUnlock()

		if err := l.openOnce(ctx); err != nil {
			return nil, nil, err
		}
	}
}

func (l *Lazy) openOnce(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return nil
	}
	s, err := l.open(ctx)
	if err != nil {
		return storageErr(err, "open session store")
	}
	l.store = s
	return nil
}

// Save opens the medium if needed and saves sess.
func (l *Lazy) Save(ctx context.Context, sess Session) error {
	s, release, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.Save(ctx, sess)
}

// Load opens the medium if needed and reads the session.
func (l *Lazy) Load(ctx context.Context) (Session, bool, error) {
	s, release, err := l.acquire(ctx)
	if err != nil {
		return Session{}, false, err
	}
	defer release()
	return s.Load(ctx)
}

// Clear opens the medium if needed and removes the session.
func (l *Lazy) Clear(ctx context.Context) error {
	s, release, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.Clear(ctx)
}

// Close releases the medium if it was ever opened. A later call reopens it.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	var err error
	if c, ok := l.store.(io.Closer); ok {
		err = c.Close()
	}
	l.store = nil
	return err
}
