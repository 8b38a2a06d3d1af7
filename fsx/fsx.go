// Package fsx implements the file-serving handler referenced in
// spec.md's path-locking discussion (§5): a webx.Handler that opens a
// file beneath a root directory, guarded by a process-wide path lock
// so concurrent requests for the same file serialize with any writer
// (e.g. an embedder regenerating that file), and emits conditional-
// request, range, and framing headers.
//
// Adapted from the teacher's fs.go (valyala/fasthttp), whose fsHandler
// additionally does gzip/brotli pre-compression and an in-memory cache
// of opened *fsFile entries with background expiry. Pre-compression is
// a spec non-goal (no compression by default); the cache is trimmed
// here since this package's job is specifically to exercise webx's
// path lock, not to reproduce fasthttp's full static-file feature set.
// Range handling is adapted, not trimmed (SPEC_FULL.md commits to it):
// grounded on fs.go's ParseByteRanges/ByteRangeUpdate/SetContentRange,
// narrowed from fs.go's multi-range multipart/byteranges support to a
// single range per request, since this handler reads a whole file into
// memory per request rather than streaming from fs.go's seekable
// *fsFile, making a multipart assembly pass not worth its complexity.
package fsx

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/webx-org/webx"
)

// Config configures one file-serving Handler.
type Config struct {
	// Root is the directory served files are resolved beneath.
	Root string
	// IndexNames are tried, in order, when a request targets a
	// directory (e.g. "index.html").
	IndexNames []string
	// LockTimeout bounds each path-lock acquisition (spec.md §5
	// "FileLockTimeout on expiry"). Zero means block indefinitely.
	LockTimeout time.Duration
}

// Handler serves files beneath Config.Root, guarded by a shared
// webx.PathLockTable.
type Handler struct {
	cfg  Config
	lock *webx.PathLockTable
}

// New builds a Handler backed by locks, letting multiple Handlers
// (e.g. for different roots) share one process-wide path lock table
// the way spec.md §5 describes it ("a process-wide reader/writer
// lock").
func New(cfg Config, locks *webx.PathLockTable) *Handler {
	if locks == nil {
		locks = webx.NewPathLockTable()
	}
	return &Handler{cfg: cfg, lock: locks}
}

// Serve implements the webx.Handler.Func shape so it can be registered
// directly: route, _ := server.Add("/static/*path"), then
// route.AddHandler(&webx.Handler{Method: "GET", Consumes:
// webx.Anything(), Produces: webx.Anything(), Func: handler.Serve}).
func (h *Handler) Serve(req *webx.Request, _ *webx.Chain) (*webx.Response, error) {
	rel, _ := req.PathParam("path")
	clean := filepath.Clean("/" + rel)
	full := filepath.Join(h.cfg.Root, clean)
	if !strings.HasPrefix(full, filepath.Clean(h.cfg.Root)+string(filepath.Separator)) && full != filepath.Clean(h.cfg.Root) {
		return webx.NewResponse(webx.StatusNotFound).MustBuild(), nil
	}

	ctx := context.Background()
	lk, err := h.lock.RLock(ctx, full, h.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer lk.Release()

	info, err := os.Stat(full)
	if err != nil {
		return webx.NewResponse(webx.StatusNotFound).MustBuild(), nil
	}
	if info.IsDir() {
		resolved, ok := h.resolveIndex(full)
		if !ok {
			return webx.NewResponse(webx.StatusNotFound).MustBuild(), nil
		}
		full = resolved
		info, err = os.Stat(full)
		if err != nil {
			return webx.NewResponse(webx.StatusNotFound).MustBuild(), nil
		}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return webx.NewResponse(webx.StatusInternalServerError).MustBuild(), nil
	}

	etag := etagFor(info)
	lastModified := info.ModTime().UTC().Format(http11Date)

	// Conditional GET (fs.go's ctx.IfModifiedSince, extended here with
	// If-None-Match since this handler has an ETag to check it
	// against): a match on either short-circuits to 304 with no body,
	// before any Range is even considered.
	if h.notModified(req, etag, info.ModTime()) {
		nm := webx.NewResponse(webx.StatusNotModified)
		nm.Header("ETag", etag)
		nm.Header("Last-Modified", lastModified)
		return nm.Build()
	}

	b := webx.NewResponse(webx.StatusOK)
	b.Header("Content-Type", contentTypeFor(full))
	b.Header("Last-Modified", lastModified)
	b.Header("ETag", etag)
	b.Header("Accept-Ranges", "bytes")

	rangeSpec := req.Header().Get("Range")
	if rangeSpec != "" && h.rangeApplies(req, etag, info.ModTime()) {
		start, end, ok := parseByteRange(rangeSpec, len(data))
		if !ok {
			rb := webx.NewResponse(webx.StatusRequestedRangeNotSatisfiable)
			rb.Header("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
			return rb.Build()
		}
		b.Status(webx.StatusPartialContent)
		b.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		b.Header("Content-Length", strconv.Itoa(end-start+1))
		b.Body(data[start : end+1])
		return b.Build()
	}

	b.Header("Content-Length", strconv.Itoa(len(data)))
	b.Body(data)
	return b.Build()
}

// notModified reports whether req carries a conditional-GET header
// (If-None-Match or If-Modified-Since) that already matches the
// current file state, mirroring fs.go's ctx.IfModifiedSince check
// extended with the ETag comparator fs.go doesn't have.
func (h *Handler) notModified(req *webx.Request, etag string, modTime time.Time) bool {
	if inm := req.Header().Get("If-None-Match"); inm != "" {
		return inm == etag || inm == "*"
	}
	if ims := req.Header().Get("If-Modified-Since"); ims != "" {
		if t, err := time.Parse(http11Date, ims); err == nil {
			return !modTime.Truncate(time.Second).After(t)
		}
	}
	return false
}

// rangeApplies reports whether an If-Range precondition (if present)
// still matches the current file state, per RFC 7233 §3.2: a Range
// header is only honored when If-Range is absent or matches, otherwise
// the full, current representation is sent instead (the precondition
// exists so a client resuming a download doesn't splice bytes from two
// different file versions together).
func (h *Handler) rangeApplies(req *webx.Request, etag string, modTime time.Time) bool {
	ir := req.Header().Get("If-Range")
	if ir == "" {
		return true
	}
	if ir == etag {
		return true
	}
	if t, err := time.Parse(http11Date, ir); err == nil {
		return !modTime.Truncate(time.Second).After(t)
	}
	return false
}

// parseByteRange parses a single-range "bytes=start-end" Range header
// value (RFC 7233 §2.1) against size, clamping end to size-1 and
// rejecting unsatisfiable or multi-range requests. Grounded on fs.go's
// ParseByteRanges, narrowed to the single-range case this handler
// supports.
func parseByteRange(spec string, size int) (start, end int, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(spec, prefix) {
		return 0, 0, false
	}
	spec = spec[len(prefix):]
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// suffix range: "-N" means the last N bytes.
		n, err := strconv.Atoi(endStr)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, size > 0
	}

	s, err := strconv.Atoi(startStr)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if endStr == "" {
		return s, size - 1, true
	}
	e, err := strconv.Atoi(endStr)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e >= size {
		e = size - 1
	}
	return s, e, true
}

// etagFor synthesizes a strong ETag from a file's modification time
// and size. fs.go has no ETag concept at all (it validates only via
// Last-Modified/If-Modified-Since), so this follows the common
// mtime+size idiom instead of adapting a teacher routine directly.
func etagFor(info os.FileInfo) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()))
}

func (h *Handler) resolveIndex(dir string) (string, bool) {
	for _, name := range h.cfg.IndexNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

const http11Date = "Mon, 02 Jan 2006 15:04:05 GMT"

func contentTypeFor(path string) string {
	ext := filepath.Ext(path)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
