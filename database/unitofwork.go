/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/uptrace/bun"
)

const DefaultIdentityMapSize = 1024

type unitOfWorkKey struct{}

// UnitOfWork is a transaction plus an identity map of the entities loaded
// through it. It belongs to a single goroutine.
//
// Bulk statements bypass the identity map. After one runs, cached entities
// may no longer match the store until Clear is called.
type UnitOfWork struct {
	id     string
	tx     bun.Tx
	cache  *lru.Cache
	stale  bool
	logger Logger
}

// UnitOfWorkOption customizes a unit of work started by RunInTx.
type UnitOfWorkOption func(*unitOfWorkOptions)

type unitOfWorkOptions struct {
	identityMapSize int
	txOptions       *sql.TxOptions
}

// WithIdentityMapSize bounds the number of cached entities.
func WithIdentityMapSize(n int) UnitOfWorkOption {
	return func(o *unitOfWorkOptions) { o.identityMapSize = n }
}

// WithTxOptions sets the isolation level or read-only flag of the transaction.
func WithTxOptions(opts *sql.TxOptions) UnitOfWorkOption {
	return func(o *unitOfWorkOptions) { o.txOptions = opts }
}

// RunInTx runs fn inside a unit of work. If ctx already carries one, fn joins
// it; otherwise a new transaction is started on db and committed when fn
// returns nil, rolled back otherwise.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error, opts ...UnitOfWorkOption) error {
	if _, ok := ctx.Value(unitOfWorkKey{}).(*UnitOfWork); ok {
		return fn(ctx)
	}
	if db == nil {
		return ErrNoDatabase
	}

	o := unitOfWorkOptions{identityMapSize: DefaultIdentityMapSize}
	for _, opt := range opts {
		opt(&o)
	}

	return db.RunInTx(ctx, o.txOptions, func(ctx context.Context, tx bun.Tx) error {
		uow, err := newUnitOfWork(tx, o.identityMapSize)
		if err != nil {
			return err
		}
		uow.logger.Debug("Unit of work started", "uow", uow.id)
		err = fn(context.WithValue(ctx, unitOfWorkKey{}, uow))
		if err != nil {
			uow.logger.Debug("Unit of work rolled back", "uow", uow.id, "error", err)
		}
		return err
	})
}

func newUnitOfWork(tx bun.Tx, size int) (*UnitOfWork, error) {
	if size <= 0 {
		size = DefaultIdentityMapSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity map: %w", err)
	}
	return &UnitOfWork{
		id:     uuid.NewString(),
		tx:     tx,
		cache:  cache,
		logger: GetLogger(),
	}, nil
}

// CurrentUnitOfWork returns the unit of work carried by ctx, or
// ErrNoUnitOfWork.
func CurrentUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	uow, ok := ctx.Value(unitOfWorkKey{}).(*UnitOfWork)
	if !ok || uow == nil {
		return nil, ErrNoUnitOfWork
	}
	return uow, nil
}

// IDB returns the transaction as a query runner.
func (u *UnitOfWork) IDB() bun.IDB { return u.tx }

func (u *UnitOfWork) ID() string { return u.id }

// Lookup returns the cached entity for key.
func (u *UnitOfWork) Lookup(key string) (interface{}, bool) {
	v, ok := u.cache.Get(key)
	if ok && u.stale {
		u.logger.Warn("Identity map hit after a bulk statement without Clear, entity may be stale", "uow", u.id, "key", key)
	}
	return v, ok
}

// Remember stores entity under key.
func (u *UnitOfWork) Remember(key string, entity interface{}) {
	u.cache.Add(key, entity)
}

// Forget drops one cached entity.
func (u *UnitOfWork) Forget(key string) {
	u.cache.Remove(key)
}

// MarkStale records that a bulk statement changed rows behind the identity map.
func (u *UnitOfWork) MarkStale() { u.stale = true }

// IsStale reports whether a bulk statement ran since the last Clear.
func (u *UnitOfWork) IsStale() bool { return u.stale }

// Clear empties the identity map so later reads observe the store.
func (u *UnitOfWork) Clear() {
	u.cache.Purge()
	u.stale = false
}

// Len is the number of cached entities.
func (u *UnitOfWork) Len() int { return u.cache.Len() }

// EntityKey builds the identity map key of a row.
func EntityKey(table string, id interface{}) string {
	return fmt.Sprintf("%s:%v", table, id)
}
