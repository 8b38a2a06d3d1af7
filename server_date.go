package webx

import (
	"sync"
	"sync/atomic"
	"time"
)

// httpDateFormat is the IMF-fixdate format required by RFC 7231 §7.1.1.1
// for the Date header.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

func formatHTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateFormat)
}

// dateUpdater keeps a cached, once-a-second-refreshed rendering of the
// current time for the Date response header, rather than formatting a
// timestamp on every response. Adapted from the teacher's
// server_date.go background updater, generalized from a package-level
// singleton to one instance per Server so independent servers in the
// same process don't share a start/stop refcount.
type dateUpdater struct {
	mtx        sync.Mutex
	useCounter int32
	date       atomic.Value
	stopCh     chan struct{}
}

func (u *dateUpdater) start() {
	u.mtx.Lock()
	defer u.mtx.Unlock()
	u.useCounter++
	if u.useCounter == 1 {
		u.stopCh = make(chan struct{})
		u.date.Store(formatHTTPDate(time.Now()))
		go u.loop(u.stopCh)
	}
}

func (u *dateUpdater) loop(stop chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			u.date.Store(formatHTTPDate(now))
		}
	}
}

func (u *dateUpdater) stop() {
	u.mtx.Lock()
	defer u.mtx.Unlock()
	u.useCounter--
	if u.useCounter == 0 && u.stopCh != nil {
		close(u.stopCh)
		u.stopCh = nil
	}
}

func (u *dateUpdater) get() string {
	if v, ok := u.date.Load().(string); ok && v != "" {
		return v
	}
	return formatHTTPDate(coarseTimeNow())
}
