/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

// Package logger provides a small logrus-backed structured logger used by
// the reactor, the worker pool, the DB handle pool and the HTTP layer to
// report connection lifecycle, pool exhaustion and request failures.
package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is obtained by every component through a registered accessor
// function rather than a package-level global, so tests can inject a
// discard logger.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	SetOptions(opt *Options) error
	GetOptions() *Options

	SetFields(field Fields)
	GetFields() Fields

	// Entry builds a log entry at the given level with a formatted message.
	Entry(lvl Level, message string, args ...interface{}) *Entry

	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Fatal(message string, args ...interface{})

	Write(p []byte) (n int, err error)
	Close() error
}

type logger struct {
	m     sync.RWMutex
	lvl   Level
	log   *logrus.Logger
	opt   *Options
	fld   Fields
	hooks []io.Closer
}

// New returns a Logger writing through logrus at the given minimal level.
func New(lvl Level) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableColors: false, FullTimestamp: true})
	l.SetLevel(lvl.Logrus())

	return &logger{
		lvl: lvl,
		log: l,
		opt: &Options{},
		fld: NewFields(),
	}
}

func (o *logger) SetLevel(lvl Level) {
	o.m.Lock()
	defer o.m.Unlock()

	o.lvl = lvl
	o.log.SetLevel(lvl.Logrus())
}

func (o *logger) GetLevel() Level {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.lvl
}

// SetOptions validates opt, then rebuilds the logrus output: the standard
// stdout/stderr writer is toggled by DisableStandard, and one hook is
// registered per configured file and syslog destination. Hooks left over
// from a previous call are closed first so repeated calls never leak file
// descriptors or syslog connections.
func (o *logger) SetOptions(opt *Options) error {
	if opt == nil {
		return ErrorParamsEmpty.Error(nil)
	} else if err := opt.Validate(); err != nil {
		return err
	}

	o.m.Lock()
	defer o.m.Unlock()

	for _, h := range o.hooks {
		_ = h.Close()
	}
	o.hooks = o.hooks[:0]

	o.log.ReplaceHooks(make(logrus.LevelHooks))

	if opt.DisableStandard {
		o.log.SetOutput(io.Discard)
	} else {
		o.log.SetOutput(logrus.StandardLogger().Out)
	}

	format := o.log.Formatter

	for _, fo := range opt.LogFile {
		hk, err := NewHookFile(fo, format)
		if err != nil {
			return fmt.Errorf("logger: cannot register file hook for '%s': %w", fo.Filepath, err)
		}
		hk.RegisterHook(o.log)
		o.hooks = append(o.hooks, hk)
	}

	for _, so := range opt.LogSyslog {
		hk, err := NewHookSyslog(so)
		if err != nil {
			return fmt.Errorf("logger: cannot register syslog hook for '%s': %w", so.Tag, err)
		}
		hk.RegisterHook(o.log)
		o.hooks = append(o.hooks, hk)
	}

	o.opt = opt
	return nil
}

func (o *logger) GetOptions() *Options {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.opt
}

func (o *logger) SetFields(field Fields) {
	o.m.Lock()
	defer o.m.Unlock()

	o.fld = field
}

func (o *logger) GetFields() Fields {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.fld
}

func (o *logger) Entry(lvl Level, message string, args ...interface{}) *Entry {
	o.m.RLock()
	fld := o.fld
	log := o.log
	o.m.RUnlock()

	return &Entry{
		log:     func() *logrus.Logger { return log },
		Level:   lvl,
		Message: fmt.Sprintf(message, args...),
		Fields:  fld,
	}
}

func (o *logger) Debug(message string, args ...interface{}) {
	o.Entry(DebugLevel, message, args...).Log()
}

func (o *logger) Info(message string, args ...interface{}) {
	o.Entry(InfoLevel, message, args...).Log()
}

func (o *logger) Warning(message string, args ...interface{}) {
	o.Entry(WarnLevel, message, args...).Log()
}

func (o *logger) Error(message string, args ...interface{}) {
	o.Entry(ErrorLevel, message, args...).Log()
}

func (o *logger) Fatal(message string, args ...interface{}) {
	o.Entry(FatalLevel, message, args...).Log()
}

func (o *logger) Write(p []byte) (n int, err error) {
	o.m.RLock()
	log := o.log
	o.m.RUnlock()

	log.Info(string(p))
	return len(p), nil
}

func (o *logger) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	var err error
	for _, h := range o.hooks {
		if e := h.Close(); e != nil && err == nil {
			err = e
		}
	}
	o.hooks = nil

	return err
}
