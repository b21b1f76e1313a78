// Package lock provides the scoped mutual-exclusion primitives the ledger
// relies on: a transaction-lifetime lock for folio issuance and a
// process-wide lock for multi-transaction sagas.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/koreacc/koreacc/internal/shared"
)

// TxLocker serialises a named scope for the remainder of a transaction.
// The lock is released implicitly on commit or rollback.
type TxLocker interface {
	Acquire(ctx context.Context, tx pgx.Tx, key string) error
}

// Advisory acquires a PostgreSQL transaction-scoped advisory lock over the
// hashed key. hashtext folds arbitrary scope strings into the bigint space
// pg_advisory_xact_lock expects.
type Advisory struct{}

func (Advisory) Acquire(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

// KeyedMutex is an in-memory TxLocker for single-instance deployments and
// tests. It ignores the transaction: the mutex is held until Release.
type KeyedMutex struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{mutexes: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, tx pgx.Tx, key string) error {
	k.mu.Lock()
	m, ok := k.mutexes[key]
	if !ok {
		m = &sync.Mutex{}
		k.mutexes[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return nil
}

// Release unlocks the scope taken by Acquire.
func (k *KeyedMutex) Release(key string) {
	k.mu.Lock()
	m, ok := k.mutexes[key]
	k.mu.Unlock()
	if ok {
		m.Unlock()
	}
}

// LocalLocker is an in-process stand-in for ProcessLocker used when redis
// is unavailable. It only protects against concurrent closes within the
// same instance.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker constructs an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Obtain takes the named lock or fails without blocking. The returned
// function releases the lock.
func (l *LocalLocker) Obtain(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("lock %q already held: %w", key, shared.ErrConcurrency)
	}
	l.held[key] = true
	release := func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}
	return release, nil
}
