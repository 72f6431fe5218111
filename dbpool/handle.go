/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package dbpool

import (
	"database/sql"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	liberr "github.com/nabbar/reactord/errors"
	liblog "github.com/nabbar/reactord/logger"
)

// Handle wraps one opened MySQL connection. The pool hands out *Handle
// values rather than raw *gorm.DB so that a future handle type (e.g. a
// replica-aware wrapper) can be swapped in without touching call sites.
type Handle struct {
	db      *gorm.DB
	closeFn func() error
}

// DB exposes the underlying *gorm.DB for query building by the caller
// holding the handle for the duration of its Lease.
func (h *Handle) DB() *gorm.DB {
	return h.db
}

// close releases the native *sql.DB connection backing this handle.
func (h *Handle) close() error {
	if h.closeFn != nil {
		return h.closeFn()
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// openHandle opens one MySQL connection per the given Config, mirroring
// the per-connection setup the legacy pool performed inside its Init loop
// (mysql_real_connect called connSize times). Query logging is routed
// through the pool's own logger accessor via liblog.NewGormLogger rather
// than gorm's default stderr logger, so a handle's queries show up in the
// same structured log stream as the rest of the server.
func openHandle(cfg Config, log func() liblog.Logger) (*Handle, liberr.Error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: liblog.NewGormLogger(log, true, 200*time.Millisecond),
	})
	if err != nil {
		e := ErrorPoolOpenHandle.Error(nil)
		e.Add(err)
		return nil, e
	}

	var sqlDB *sql.DB
	if sqlDB, err = db.DB(); err != nil {
		e := ErrorPoolOpenHandle.Error(nil)
		e.Add(err)
		return nil, e
	}

	// Each handle is a single dedicated connection: the pool itself is the
	// concurrency unit, not the database/sql pool underneath it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err = sqlDB.Ping(); err != nil {
		e := ErrorPoolOpenHandle.Error(nil)
		e.Add(err)
		return nil, e
	}

	return &Handle{db: db, closeFn: sqlDB.Close}, nil
}
