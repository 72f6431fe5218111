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

package httpproto

import (
	"bytes"
	"strconv"
	"strings"

	liberr "github.com/nabbar/reactord/errors"

	"github.com/nabbar/reactord/bytebuffer"
)

// ParseState tracks progress through the request grammar, driven one
// readiness event at a time off a partially-filled Buffer.
type ParseState uint8

const (
	StateRequestLine ParseState = iota
	StateHeaders
	StateBody
	StateFinish
)

// defaultHTML canonicalizes a bare resource name to its .html file, the
// set of pages servable without an explicit extension.
var defaultHTML = map[string]struct{}{
	"/index":    {},
	"/register": {},
	"/login":    {},
	"/welcome":  {},
	"/video":    {},
	"/picture":  {},
}

// defaultHTMLTag marks which canonical pages submit credentials: 0 is the
// registration form, 1 is the login form.
var defaultHTMLTag = map[string]int{
	"/register.html": 0,
	"/login.html":    1,
}

// Request is one HTTP/1.1 request being assembled incrementally from a
// connection's read buffer.
type Request struct {
	state ParseState

	Method  string
	Path    string
	Version string
	Header  map[string]string
	Body    string
	PostForm map[string]string

	// Tag is set from defaultHTMLTag when Path names a credential form,
	// -1 otherwise.
	Tag int
}

// New returns a fresh Request ready to Parse.
func New() *Request {
	return &Request{
		state:   StateRequestLine,
		Header:  make(map[string]string),
		PostForm: make(map[string]string),
		Tag:     -1,
	}
}

// IsKeepAlive reports whether the connection should stay open after the
// response is sent: the Connection header must say "keep-alive" and the
// request must be HTTP/1.1. Absent the header, the connection closes.
func (r *Request) IsKeepAlive() bool {
	v, ok := r.Header["Connection"]
	if !ok {
		return false
	}
	return v == "keep-alive" && r.Version == "1.1"
}

// Parse consumes as much of buf's readable region as forms complete
// lines/body and advances r.state accordingly. It returns true once the
// request is fully parsed (StateFinish) and leaves any trailing bytes
// (the start of a pipelined next request) in buf.
func (r *Request) Parse(buf *bytebuffer.Buffer) (bool, liberr.Error) {
	for r.state != StateFinish {
		switch r.state {
		case StateRequestLine:
			line, ok := extractLine(buf)
			if !ok {
				return false, nil
			}
			if err := r.parseRequestLine(line); err != nil {
				return false, err
			}
			r.state = StateHeaders

		case StateHeaders:
			line, ok := extractLine(buf)
			if !ok {
				return false, nil
			}
			if len(line) == 0 {
				if r.Method == "POST" {
					r.state = StateBody
				} else {
					r.state = StateFinish
				}
				continue
			}
			if err := r.parseHeaderLine(line); err != nil {
				return false, err
			}

		case StateBody:
			n, _ := strconv.Atoi(r.Header["Content-Length"])
			if buf.ReadableBytes() < n {
				return false, nil
			}
			body := buf.Peek()[:n]
			r.Body = string(body)
			buf.Retrieve(n)
			r.parsePost()
			r.state = StateFinish
		}
	}

	return true, nil
}

// extractLine pulls one CRLF-terminated line out of buf without the
// trailing CRLF, leaving everything after it untouched. ok is false if no
// full line is buffered yet.
func extractLine(buf *bytebuffer.Buffer) (string, bool) {
	data := buf.Peek()
	idx := bytes.Index(data, []byte("\r\n"))
	if idx < 0 {
		return "", false
	}

	line := string(data[:idx])
	buf.Retrieve(idx + 2)
	return line, true
}

func (r *Request) parseRequestLine(line string) liberr.Error {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return ErrorMalformedRequestLine.Error(nil)
	}

	version := strings.TrimPrefix(parts[2], "HTTP/")
	if version != "1.0" && version != "1.1" {
		return ErrorUnsupportedVersion.Error(nil)
	}

	r.Method = parts[0]
	r.Version = version
	r.parsePath(parts[1])

	return nil
}

func (r *Request) parsePath(raw string) {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if path == "/" {
		path = "/index.html"
	} else if _, ok := defaultHTML[path]; ok {
		path += ".html"
	}

	r.Path = path
	if tag, ok := defaultHTMLTag[path]; ok {
		r.Tag = tag
	}
}

func (r *Request) parseHeaderLine(line string) liberr.Error {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return ErrorMalformedHeader.Error(nil)
	}

	key := strings.TrimSpace(line[:i])
	val := strings.TrimSpace(line[i+1:])
	r.Header[key] = val

	return nil
}

func (r *Request) parsePost() {
	ct := r.Header["Content-Type"]
	if r.Method != "POST" || !strings.Contains(ct, "application/x-www-form-urlencoded") {
		return
	}

	r.PostForm = parseURLEncoded(r.Body)
}

// parseURLEncoded decodes a `key=value&key=value` body: '+' becomes a
// space, and `%HH` escapes become the corresponding byte.
func parseURLEncoded(body string) map[string]string {
	out := make(map[string]string)
	if body == "" {
		return out
	}

	var key, val strings.Builder
	writingKey := true

	flush := func() {
		if key.Len() > 0 {
			out[key.String()] = val.String()
		}
		key.Reset()
		val.Reset()
		writingKey = true
	}

	target := func() *strings.Builder {
		if writingKey {
			return &key
		}
		return &val
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '=':
			writingKey = false
		case '&':
			flush()
		case '+':
			target().WriteByte(' ')
		case '%':
			if i+2 < len(body) {
				if b, ok := decodeHex(body[i+1], body[i+2]); ok {
					target().WriteByte(b)
					i += 2
					continue
				}
			}
			target().WriteByte(c)
		default:
			target().WriteByte(c)
		}
	}
	flush()

	return out
}

func decodeHex(hi, lo byte) (byte, bool) {
	h, ok1 := hexDigit(hi)
	l, ok2 := hexDigit(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
