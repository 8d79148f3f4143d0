// Package pool implements TextPool: a concurrent, demand-paged cache of
// open text files. It maps a logical text ID to a resident
// *textfile.File, enforces single-loader-per-ID semantics, tracks
// per-ID last access, and evicts idle entries.
package pool

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knaw-huc/textsurf/apierrors"
	"github.com/knaw-huc/textsurf/textfile"
)

// state is the per-ID bookkeeping record: last access time plus the
// loading flag.
type state struct {
	lastAccess time.Time
	loading    bool
}

// Pool is a TextPool. The zero value is not usable; construct with New.
type Pool struct {
	opts Options

	textsMu sync.RWMutex
	texts   map[string]*textfile.File

	statesMu sync.RWMutex
	states   map[string]state
}

// New constructs a Pool rooted at opts.BaseDir, which must already exist.
func New(opts Options) (*Pool, error) {
	info, err := os.Stat(opts.BaseDir)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "base directory must exist", err)
	}
	if !info.IsDir() {
		return nil, apierrors.New(apierrors.KindInternal, "base directory must exist")
	}
	return &Pool{
		opts:   opts,
		texts:  make(map[string]*textfile.File),
		states: make(map[string]state),
	}, nil
}

// BaseDir returns the directory every ID is resolved under.
func (p *Pool) BaseDir() string { return p.opts.BaseDir }

// Extension returns the configured filename extension, possibly empty.
func (p *Pool) Extension() string { return p.opts.Extension }

// ReadOnly reports whether mutation operations are disabled.
func (p *Pool) ReadOnly() bool { return p.opts.ReadOnly }

// SweepInterval is how often a caller should invoke Flush(false) to evict
// idle entries; cmd/textsurf's background evictor reads it at startup.
func (p *Pool) SweepInterval() time.Duration { return p.opts.SweepInterval }

// Stat is the metadata returned by Pool.Stat.
type Stat struct {
	Chars    int64
	Bytes    int64
	Mtime    time.Time
	Checksum string
}

// Map resolves id to a resident TextFile, ensures the requested signed
// character range is loaded, and invokes fn with a copy of the resulting
// slice. No lock on the entry is held while fn runs.
func (p *Pool) Map(id string, begin, end int64, fn func(string) error) error {
	return p.withText(id, func(tf *textfile.File) error {
		s, err := tf.GetOrLoad(begin, end)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// MapLines is Map over signed line coordinates.
func (p *Pool) MapLines(id string, begin, end int64, fn func(string) error) error {
	return p.withText(id, func(tf *textfile.File) error {
		s, err := tf.GetOrLoadLines(begin, end)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// MapAbsolute resolves id to a resident TextFile and invokes fn with the
// bytes of the already-resolved absolute character range [begin,end),
// without re-normalizing begin/end through AbsolutePos/AbsoluteLinePos.
// stream.Open/chunkedReader use this, since their caller (serveRange) has
// already resolved the request's signed range once; going through Map or
// MapLines here would re-normalize it and misread a legitimately-resolved
// end==0 as the "extend to actual end" sentinel.
func (p *Pool) MapAbsolute(id string, begin, end int64, fn func(string) error) error {
	return p.withText(id, func(tf *textfile.File) error {
		s, err := tf.GetRange(begin, end)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// AbsolutePos resolves a signed character range to absolute [begin,end)
// character positions without materializing any bytes.
func (p *Pool) AbsolutePos(id string, begin, end int64) (int64, int64, error) {
	var b, e int64
	err := p.withText(id, func(tf *textfile.File) error {
		var err error
		b, e, err = tf.AbsolutePos(begin, end)
		return err
	})
	return b, e, err
}

// AbsoluteLinePos resolves a signed line range to absolute [begin,end)
// character positions.
func (p *Pool) AbsoluteLinePos(id string, begin, end int64) (int64, int64, error) {
	var b, e int64
	err := p.withText(id, func(tf *textfile.File) error {
		var err error
		b, e, err = tf.AbsoluteLinePos(begin, end)
		return err
	})
	return b, e, err
}

// Stat returns {chars, bytes, mtime, checksum} for id, loading the index
// but no text bytes if id isn't already resident.
func (p *Pool) Stat(id string) (Stat, error) {
	var st Stat
	err := p.withText(id, func(tf *textfile.File) error {
		st = Stat{
			Chars:    tf.Len(),
			Bytes:    tf.LenUTF8(),
			Mtime:    tf.Mtime(),
			Checksum: tf.ChecksumDigest(),
		}
		return nil
	})
	return st, err
}

// withText ensures id is resident then invokes fn with it.
func (p *Pool) withText(id string, fn func(*textfile.File) error) error {
	if _, err := p.load(id); err != nil {
		return err
	}
	p.textsMu.RLock()
	tf, ok := p.texts[id]
	p.textsMu.RUnlock()
	if !ok {
		return apierrors.New(apierrors.KindInternal, "text should have been loaded")
	}
	return fn(tf)
}

// load implements the single-loader protocol:
// Absent -> Loading -> Ready. The winning goroutine builds the TextFile
// outside of any lock; everyone else polls at WaitInterval.
func (p *Pool) load(id string) (state, error) {
	for {
		p.statesMu.RLock()
		st, ok := p.states[id]
		p.statesMu.RUnlock()

		if ok {
			if st.loading {
				time.Sleep(p.opts.WaitInterval)
				continue
			}
			p.statesMu.Lock()
			st = p.states[id]
			st.lastAccess = time.Now()
			p.states[id] = st
			p.statesMu.Unlock()
			return st, nil
		}

		filename, err := p.filenameFromID(id)
		if err != nil {
			return state{}, err
		}
		if _, statErr := os.Stat(filename); statErr != nil {
			return state{}, apierrors.New(apierrors.KindNotFound, "no such text exists")
		}

		p.statesMu.Lock()
		if _, already := p.states[id]; already {
			p.statesMu.Unlock()
			continue // lost the race to another loader; poll again
		}
		p.states[id] = state{lastAccess: time.Now(), loading: true}
		p.statesMu.Unlock()

		mode := textfile.NoLineIndex
		if p.opts.LineIndex {
			mode = textfile.WithLineIndex
		}
		tf, err := textfile.Open(filename, indexPathFor(filename), mode)
		if err != nil {
			p.statesMu.Lock()
			delete(p.states, id)
			p.statesMu.Unlock()
			return state{}, err
		}

		p.textsMu.Lock()
		p.texts[id] = tf
		p.textsMu.Unlock()

		p.statesMu.Lock()
		st = state{lastAccess: time.Now(), loading: false}
		p.states[id] = st
		p.statesMu.Unlock()
		return st, nil
	}
}

// NewText writes body to id's filename, creating parent directories as
// needed. Fails with PermissionDenied if the pool is read-only, or if the
// file exists and overwrite is false. Returns whether a new file was
// created.
func (p *Pool) NewText(id string, body string, overwrite bool) (bool, error) {
	if p.opts.ReadOnly {
		return false, apierrors.New(apierrors.KindPermissionDenied, "service is read-only")
	}
	filename, err := p.filenameFromID(id)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(filename)
	exists := statErr == nil
	if exists && !overwrite {
		return false, apierrors.New(apierrors.KindPermissionDenied, "text already exists")
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, apierrors.FromIOError(err)
		}
	}
	if err := os.WriteFile(filename, []byte(body), 0o644); err != nil {
		return false, apierrors.FromIOError(err)
	}
	return !exists, nil
}

// DeleteText unloads id if resident and removes the source file and its
// sidecar index.
func (p *Pool) DeleteText(id string) error {
	if p.opts.ReadOnly {
		return apierrors.New(apierrors.KindPermissionDenied, "service is read-only")
	}
	filename, err := p.filenameFromID(id)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(filename); statErr != nil {
		return apierrors.New(apierrors.KindNotFound, "no such text")
	}
	if err := p.Unload(id); err != nil {
		return err
	}
	if err := os.Remove(filename); err != nil {
		return apierrors.FromIOError(err)
	}
	idxPath := indexPathFor(filename)
	if _, err := os.Stat(idxPath); err == nil {
		_ = os.Remove(idxPath)
	}
	return nil
}

// Unload evicts id if resident; it is a no-op otherwise. It waits for any
// in-progress load to finish first.
func (p *Pool) Unload(id string) error {
	for {
		p.statesMu.RLock()
		st, ok := p.states[id]
		p.statesMu.RUnlock()
		if !ok {
			return nil
		}
		if st.loading {
			time.Sleep(p.opts.WaitInterval)
			continue
		}
		break
	}

	p.textsMu.Lock()
	if tf, ok := p.texts[id]; ok {
		_ = tf.Close()
		delete(p.texts, id)
	}
	p.textsMu.Unlock()

	p.statesMu.Lock()
	delete(p.states, id)
	p.statesMu.Unlock()
	return nil
}

// Flush scans state and unloads every ID whose last access is at least
// UnloadTime old, or every resident ID if force is true. It returns the
// IDs it unloaded.
func (p *Pool) Flush(force bool) ([]string, error) {
	now := time.Now()
	var ids []string

	p.statesMu.RLock()
	for id, st := range p.states {
		if force || now.Sub(st.lastAccess) >= p.opts.UnloadTime {
			ids = append(ids, id)
		}
	}
	p.statesMu.RUnlock()

	for _, id := range ids {
		if err := p.Unload(id); err != nil {
			return ids, err
		}
	}
	return ids, nil
}
