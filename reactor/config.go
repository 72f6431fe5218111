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

package reactor

import (
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/reactord/errors"
)

// TriggerMode selects the epoll readiness notification mode for both the
// listening socket and accepted connections.
type TriggerMode uint8

const (
	// LevelTriggered re-reports readiness every epoll_wait while data
	// remains, the default and most forgiving mode.
	LevelTriggered TriggerMode = iota
	// EdgeTriggered reports readiness once per state transition: the
	// handler must drain the fd to EAGAIN before returning.
	EdgeTriggered
)

// Config describes one reactor instance: its listening port, trigger
// mode, connection idle deadline, and the static file root served for
// GET requests. It mirrors the legacy WebServer constructor's
// (port, trigMode, timeoutMS, OptLinger, ...) parameter list.
type Config struct {
	Port int `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"required,min=1024,max=65535"`

	// ListenTrigger and ConnTrigger reproduce the legacy two independent
	// trigger-mode bits (one for the listening socket, one for accepted
	// connections) folded into a single 0-3 CLI flag upstream.
	ListenTrigger TriggerMode `mapstructure:"-" json:"-" yaml:"-" toml:"-"`
	ConnTrigger   TriggerMode `mapstructure:"-" json:"-" yaml:"-" toml:"-"`

	// IdleTimeout closes a connection that stays readable-idle this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout" validate:"required"`

	// Linger, when true, sets SO_LINGER with a zero timeout so a closed
	// socket sends RST instead of going through TIME_WAIT.
	Linger bool `mapstructure:"linger" json:"linger" yaml:"linger" toml:"linger"`

	// ResourcesDir is the static file root resolved against every GET
	// request's canonicalized path.
	ResourcesDir string `mapstructure:"resources_dir" json:"resources_dir" yaml:"resources_dir" toml:"resources_dir" validate:"required"`

	// WorkerCount sizes the worker pool draining parsed requests.
	WorkerCount int `mapstructure:"worker_count" json:"worker_count" yaml:"worker_count" toml:"worker_count" validate:"required,min=1"`

	// MaxConnections bounds the epoll interest set, mirroring the legacy
	// webserver.h MAX_FD constant.
	MaxConnections int `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections" toml:"max_connections" validate:"required,min=1"`
}

// Validate checks the struct tags via go-playground/validator.
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

// DefaultMaxConnections mirrors the legacy MAX_FD constant from
// webserver.h.
const DefaultMaxConnections = 65536
