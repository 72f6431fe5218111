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

// Package reactor implements a single-thread readiness-based event loop
// (epoll) dispatching accepted connections' parsing and response building
// onto a worker pool, the concurrency model of the whole server.
package reactor

import (
	liberr "github.com/nabbar/reactord/errors"
)

const (
	ErrorParamsEmpty liberr.CodeError = iota + liberr.MinPkgReactor
	ErrorValidatorError
	ErrorEpollCreate
	ErrorEpollCtl
	ErrorEpollWait
	ErrorSocketCreate
	ErrorSocketBind
	ErrorSocketListen
	ErrorSocketAccept
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorParamsEmpty)
	liberr.RegisterIdFctMessage(ErrorParamsEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case liberr.UnknownError:
		return ""
	case ErrorParamsEmpty:
		return "given parameters is empty"
	case ErrorValidatorError:
		return "reactor: invalid config"
	case ErrorEpollCreate:
		return "reactor: epoll_create1 failed"
	case ErrorEpollCtl:
		return "reactor: epoll_ctl failed"
	case ErrorEpollWait:
		return "reactor: epoll_wait failed"
	case ErrorSocketCreate:
		return "reactor: socket creation failed"
	case ErrorSocketBind:
		return "reactor: socket bind failed"
	case ErrorSocketListen:
		return "reactor: socket listen failed"
	case ErrorSocketAccept:
		return "reactor: socket accept failed"
	}

	return ""
}
