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

// Package dbpool implements a fixed-size pool of pre-opened MySQL handles,
// acquired and released under a counting semaphore so that callers block
// on exhaustion instead of opening unbounded connections.
package dbpool

import (
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/reactord/errors"
)

// Config describes the fixed-size handle pool to open at startup. Every
// field maps onto the legacy SqlConnPool::Init(host, port, user, pwd,
// dbName, connSize) constructor, plus AcquireTimeout bounding how long
// Acquire waits for a free handle.
type Config struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host" toml:"host" validate:"required"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"required,min=1,max=65535"`
	User     string `mapstructure:"user" json:"user" yaml:"user" toml:"user" validate:"required"`
	Password string `mapstructure:"password" json:"password" yaml:"password" toml:"password"`
	DBName   string `mapstructure:"db_name" json:"db_name" yaml:"db_name" toml:"db_name" validate:"required"`

	// PoolSize is the fixed number of handles pre-opened and kept alive for
	// the lifetime of the pool. It is also the semaphore's total weight.
	PoolSize int `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size" toml:"pool_size" validate:"required,min=1"`

	// AcquireTimeout bounds how long Acquire waits on an exhausted pool
	// before giving up. Zero means wait until the caller's context is done.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" json:"acquire_timeout" yaml:"acquire_timeout" toml:"acquire_timeout"`
}

// Validate checks the struct tags above via go-playground/validator and
// wraps the first failing field into a CodeError, in the same shape as
// every other Config.Validate() in this module.
func (c Config) Validate() liberr.Error {
	err := ErrorValidatorError.Error(nil)
	val := validator.New()

	if errVal := val.Struct(c); errVal != nil {
		if e, ok := errVal.(*validator.InvalidValidationError); ok {
			err.Add(fmt.Errorf("%w", e))
		} else {
			for _, e := range errVal.(validator.ValidationErrors) {
				err.Add(fmt.Errorf("field '%s' fails on '%s' validation", e.Namespace(), e.Tag()))
			}
		}
	}

	if err.HasParent() {
		return err
	}

	return nil
}

// DSN builds the MySQL data source name consumed by the gorm MySQL driver.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName,
	)
}
