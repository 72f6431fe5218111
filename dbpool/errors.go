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
	liberr "github.com/nabbar/reactord/errors"
)

const (
	ErrorParamsEmpty liberr.CodeError = iota + liberr.MinPkgDbPool
	ErrorValidatorError
	ErrorPoolOpenHandle
	ErrorPoolNotInitialized
	ErrorPoolClosed
	ErrorPoolAcquire
	ErrorPoolCloseHandle
	ErrorUserVerify
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
		return "dbpool: invalid config"
	case ErrorPoolOpenHandle:
		return "dbpool: cannot open a pooled handle"
	case ErrorPoolNotInitialized:
		return "dbpool: pool is not initialized"
	case ErrorPoolClosed:
		return "dbpool: pool is closed"
	case ErrorPoolAcquire:
		return "dbpool: cannot acquire a handle"
	case ErrorPoolCloseHandle:
		return "dbpool: error closing a pooled handle"
	case ErrorUserVerify:
		return "dbpool: user verification query failed"
	}

	return ""
}
