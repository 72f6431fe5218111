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

// Package httpproto implements a minimal HTTP/1.1 request parser and
// static-file/login response builder, driven incrementally off the
// reactor's per-connection read buffer rather than net/http's blocking
// bufio.Reader.
package httpproto

import (
	liberr "github.com/nabbar/reactord/errors"
)

const (
	ErrorParamsEmpty liberr.CodeError = iota + liberr.MinPkgHttpProto
	ErrorMalformedRequestLine
	ErrorMalformedHeader
	ErrorUnsupportedVersion
	ErrorFileNotFound
	ErrorFileForbidden
	ErrorMmapFailed
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
	case ErrorMalformedRequestLine:
		return "httpproto: malformed request line"
	case ErrorMalformedHeader:
		return "httpproto: malformed header line"
	case ErrorUnsupportedVersion:
		return "httpproto: unsupported HTTP version"
	case ErrorFileNotFound:
		return "httpproto: requested resource not found"
	case ErrorFileForbidden:
		return "httpproto: requested resource is forbidden"
	case ErrorMmapFailed:
		return "httpproto: mmap of the requested resource failed"
	}

	return ""
}
