package webx

import "io"

// Attributes is the mutable, typed key/value bag that lives for the
// whole exchange (spec.md §3: "used to propagate cross-cutting state,
// e.g. authenticated role"). It is only ever touched by the single
// goroutine driving one exchange, so — unlike the teacher's userData,
// which defends against concurrent Set/Get with a lock-free
// CAS-based slot reuse scheme — this is a plain slice under no lock at
// all; adapted from userdata.go with its concurrency machinery
// stripped since it no longer applies to the single-goroutine-per-
// exchange model (spec.md §5).
type Attributes struct {
	kv []attrKV
}

type attrKV struct {
	key   string
	value interface{}
}

// Set stores value under key, replacing any previous value.
func (a *Attributes) Set(key string, value interface{}) {
	for i := range a.kv {
		if a.kv[i].key == key {
			a.kv[i].value = value
			return
		}
	}
	a.kv = append(a.kv, attrKV{key: key, value: value})
}

// Get returns the value stored under key, and whether it was present.
func (a *Attributes) Get(key string) (interface{}, bool) {
	for _, kv := range a.kv {
		if kv.key == key {
			return kv.value, true
		}
	}
	return nil, false
}

// Remove deletes key, closing its value if it implements io.Closer.
func (a *Attributes) Remove(key string) {
	for i, kv := range a.kv {
		if kv.key == key {
			if c, ok := kv.value.(io.Closer); ok {
				_ = c.Close()
			}
			a.kv = append(a.kv[:i], a.kv[i+1:]...)
			return
		}
	}
}

// reset clears the bag between exchanges on a reused Attributes,
// closing any io.Closer values the way userData.Reset does.
func (a *Attributes) reset() {
	for _, kv := range a.kv {
		if c, ok := kv.value.(io.Closer); ok {
			_ = c.Close()
		}
	}
	a.kv = a.kv[:0]
}
