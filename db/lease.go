package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStoreContention the lease on a secret could not be acquired in time. Retryable.
var ErrStoreContention = errors.New("secret is locked by another transaction")

// Lease exclusive hold on one secret
type Lease interface {
	/*
		Release give up the lease. Calling Release more than once is a no-op.

			@param ctx context.Context - execution context
	*/
	Release(ctx context.Context) error
}

// LeaseProvider hands out exclusive per-secret leases
//
// The lease complements the row lock of the enclosing transaction: it guarantees the same
// serialization on databases that have no row level locking (i.e. SQLite).
type LeaseProvider interface {
	/*
		Acquire block until the lease on a secret is held, or the context is done

			@param ctx context.Context - execution context; its deadline is the lock timeout
			@param secretID string - the secret to lease
			@returns the held lease
	*/
	Acquire(ctx context.Context, secretID string) (Lease, error)
}

// localLeaseEntry one secret's lease slot
type localLeaseEntry struct {
	sem  chan struct{}
	refs int
}

// localLeaseProvider implements LeaseProvider within one process
type localLeaseProvider struct {
	lock    sync.Mutex
	entries map[string]*localLeaseEntry
}

// NewLocalLeaseProvider define an in-process lease provider
func NewLocalLeaseProvider() LeaseProvider {
	return &localLeaseProvider{entries: make(map[string]*localLeaseEntry)}
}

func (p *localLeaseProvider) Acquire(ctx context.Context, secretID string) (Lease, error) {
	p.lock.Lock()
	entry, ok := p.entries[secretID]
	if !ok {
		entry = &localLeaseEntry{sem: make(chan struct{}, 1)}
		p.entries[secretID] = entry
	}
	entry.refs++
	p.lock.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return &localLease{provider: p, secretID: secretID, entry: entry}, nil
	case <-ctx.Done():
		p.dropRef(secretID, entry)
		return nil, fmt.Errorf(
			"lease on secret %s not acquired [%w] [%w]", secretID, ErrStoreContention, ctx.Err(),
		)
	}
}

// dropRef forget the entry once nobody holds or waits on it
func (p *localLeaseProvider) dropRef(secretID string, entry *localLeaseEntry) {
	p.lock.Lock()
	defer p.lock.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(p.entries, secretID)
	}
}

// size number of tracked secrets
func (p *localLeaseProvider) size() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.entries)
}

type localLease struct {
	provider *localLeaseProvider
	secretID string
	entry    *localLeaseEntry
	once     sync.Once
}

func (l *localLease) Release(_ context.Context) error {
	l.once.Do(func() {
		<-l.entry.sem
		l.provider.dropRef(l.secretID, l.entry)
	})
	return nil
}
