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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/reactord/errors"

	"github.com/nabbar/reactord/bytebuffer"
)

// suffixType maps a file extension to its Content-Type, falling back to
// text/plain for anything unlisted.
var suffixType = map[string]string{
	".html": "text/html",
	".xml":  "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".pdf":  "application/pdf",
	".word": "application/nsword",
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".au":   "audio/basic",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".avi":  "video/x-msvideo",
	".gz":   "application/x-gzip",
	".tar":  "application/x-tar",
	".css":  "text/css",
	".js":   "text/javascript",
}

// codeStatus gives the reason phrase for the codes this server emits.
var codeStatus = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

// codePath maps an error status to the static error page served for it.
var codePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Response builds one HTTP/1.1 response, serving either a memory-mapped
// static file or a small generated body (redirects, error pages).
type Response struct {
	resourceDir string

	Code      int
	Path      string
	KeepAlive bool

	mmapData   []byte
	inlineBody []byte
	fileSize   int64
}

// NewResponse targets resourceDir as the static file root, matching the
// legacy srcDir passed into HttpResponse::Init.
func NewResponse(resourceDir string) *Response {
	return &Response{resourceDir: resourceDir, Code: -1}
}

// Prepare resolves path against the resource directory, stats it, and
// picks the status code: 404 if missing or outside resourceDir, 403 if
// unreadable or a directory, otherwise code if the caller forced one
// (code != -1), 200 by default. On a non-200 outcome it re-resolves Path
// to the matching error page from codePath before returning.
func (resp *Response) Prepare(code int, path string, keepAlive bool) liberr.Error {
	resp.Path = path
	resp.KeepAlive = keepAlive
	resp.mmapData = nil
	resp.inlineBody = nil
	resp.fileSize = 0

	full, safe := resp.resolvePath(path)

	var info os.FileInfo
	var err error
	if safe {
		info, err = os.Stat(full)
	}

	switch {
	case !safe, err != nil:
		resp.Code = 404
	case info.IsDir(), info.Mode().Perm()&0o004 == 0:
		resp.Code = 403
	case code != -1:
		resp.Code = code
	default:
		resp.Code = 200
	}

	if resp.Code == 200 {
		resp.fileSize = info.Size()
	} else {
		resp.Path = codePath[resp.Code]
		full = filepath.Join(resp.resourceDir, resp.Path)
		if errInfo, e := os.Stat(full); e == nil {
			resp.fileSize = errInfo.Size()
		}
	}

	return resp.mapFile(full)
}

// resolvePath joins path onto resourceDir and rejects any result that
// escapes it, e.g. via a leading run of ".." segments. ok is false for an
// escaping path, matching a 404/not-found outcome rather than leaking
// whether something outside resourceDir exists.
func (resp *Response) resolvePath(path string) (full string, ok bool) {
	root := filepath.Clean(resp.resourceDir)
	full = filepath.Join(root, path)

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return full, false
	}

	return full, true
}

// mapFile memory-maps the resolved file read-only and private. Unlike the
// pointer-sentinel check the legacy code performed against an int-typed
// alias of the mmap return value, unix.Mmap reports failure through its
// error return, which is the only correct way to detect it — a mapped
// address can legitimately take any bit pattern, including one that
// collides with a sentinel.
//
// If the file can't be opened or mapped at all (the error page itself is
// missing, a race against the earlier stat), Prepare still must produce a
// response: it falls back to a small inline HTML body built from the
// status already chosen.
func (resp *Response) mapFile(full string) liberr.Error {
	f, err := os.Open(full)
	if err != nil {
		resp.buildInlineBody()
		return nil
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(resp.fileSize), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		resp.buildInlineBody()
		return nil
	}

	resp.mmapData = data
	return nil
}

// buildInlineBody synthesizes a minimal HTML error body carrying the
// current status code and reason phrase, used whenever the on-disk error
// page itself can't be served.
func (resp *Response) buildInlineBody() {
	status := codeStatus[resp.Code]
	if status == "" {
		status = codeStatus[400]
	}

	resp.inlineBody = []byte(fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">%d : %s\n<p>File NotFound!</p><hr><em>reactord</em></body></html>",
		resp.Code, status,
	))
}

// Unmap releases the file's mapping. It must be called once the response
// has been fully written to the connection.
func (resp *Response) Unmap() error {
	if resp.mmapData == nil {
		return nil
	}
	err := unix.Munmap(resp.mmapData)
	resp.mmapData = nil
	return err
}

// FileType returns the Content-Type for the resolved path's extension.
func (resp *Response) FileType() string {
	ext := strings.ToLower(filepath.Ext(resp.Path))
	if ct, ok := suffixType[ext]; ok {
		return ct
	}
	return "text/plain"
}

// WriteHeaders appends the status line and headers to buf. The body
// itself (mmapData, via Body) is written separately through a gather
// write so the kernel never has to copy the mapped file into user space.
func (resp *Response) WriteHeaders(buf *bytebuffer.Buffer) {
	status, ok := codeStatus[resp.Code]
	if !ok {
		resp.Code = 400
		status = codeStatus[400]
	}

	buf.AppendString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", resp.Code, status))

	if resp.KeepAlive {
		buf.AppendString("Connection: keep-alive\r\n")
		buf.AppendString("keep-alive: max=6, timeout=120\r\n")
	} else {
		buf.AppendString("Connection: close\r\n")
	}

	buf.AppendString(fmt.Sprintf("Content-type: %s\r\n", resp.FileType()))
	buf.AppendString(fmt.Sprintf("Content-length: %d\r\n", resp.bodyLen()))
	buf.AppendString("\r\n")
}

// bodyLen is the length of whatever Body will return: the mapped file, or
// the inline fallback body when mapping failed.
func (resp *Response) bodyLen() int64 {
	if resp.inlineBody != nil {
		return int64(len(resp.inlineBody))
	}
	return resp.fileSize
}

// Body returns the response body, ready for a gather write alongside the
// header buffer: the memory-mapped file, or the inline fallback body when
// mapping failed.
func (resp *Response) Body() []byte {
	if resp.inlineBody != nil {
		return resp.inlineBody
	}
	return resp.mmapData
}
