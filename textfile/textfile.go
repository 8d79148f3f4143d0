// Package textfile implements TextFile: one open source text, its
// persistent character/line checkpoint index, and the set of byte ranges
// currently materialized in memory. A File is safe for concurrent use.
package textfile

import (
	"bufio"
	"crypto/sha256"
	"io"
	"os"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/knaw-huc/textsurf/apierrors"
	"github.com/knaw-huc/textsurf/lib/file"
	"github.com/knaw-huc/textsurf/lib/ranges"
	"github.com/knaw-huc/textsurf/rangeresolve"
)

// Mode selects whether a line-start index is built alongside the
// character index. It is fixed once per pool at construction.
type Mode int

const (
	NoLineIndex Mode = iota
	WithLineIndex
)

// checkpointInterval is K: char_index entries are
// spaced this many characters apart, bounding checkpoint-lookup scans.
const checkpointInterval = 4096

// checkpoint pairs a character position with the byte offset of that
// character, on a UTF-8 code-point boundary.
type checkpoint struct {
	Char int64
	Byte int64
}

// segment is a contiguous, materialized byte range of the source file.
type segment struct {
	ranges.Range
	Data []byte
}

// File represents one open text.
type File struct {
	mu sync.RWMutex

	path      string
	indexPath string
	source    *os.File

	mtime    time.Time
	bytes    int64
	chars    int64
	checksum [32]byte

	hasLines  bool
	charIndex []checkpoint
	lineIndex []int64 // byte offsets of line starts plus a final total-bytes entry (number of lines + 1)

	resident ranges.Ranges // byte spans covered by segments, kept in sync with it
	segments []segment
}

// Open opens path read-only, building or reusing the sidecar index at
// indexPath. indexPath may be empty to disable persistence (index is always
// rebuilt in memory).
func Open(path, indexPath string, mode Mode) (*File, error) {
	source, err := file.Open(path)
	if err != nil {
		return nil, apierrors.FromIOError(err)
	}
	info, err := source.Stat()
	if err != nil {
		source.Close()
		return nil, apierrors.FromIOError(err)
	}

	f := &File{
		path:      path,
		indexPath: indexPath,
		source:    source,
		mtime:     info.ModTime(),
		bytes:     info.Size(),
		hasLines:  mode == WithLineIndex,
	}

	if indexPath != "" {
		if loaded := f.loadSidecar(indexPath); loaded {
			return f, nil
		}
	}

	if err := f.rebuild(mode); err != nil {
		source.Close()
		return nil, err
	}
	if indexPath != "" {
		if err := f.writeSidecar(indexPath); err != nil {
			source.Close()
			return nil, err
		}
	}
	return f, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.source.Close()
}

// Len returns the character count.
func (f *File) Len() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.chars
}

// LenUTF8 returns the byte count.
func (f *File) LenUTF8() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bytes
}

// Mtime returns the source file's modification time at open.
func (f *File) Mtime() time.Time {
	return f.mtime
}

// ChecksumDigest returns the SHA-256 hex digest of the source file's bytes.
func (f *File) ChecksumDigest() string {
	return hexDigest(f.checksum)
}

// AbsolutePos normalizes a signed character range into an absolute
// [begin,end) character range.
func (f *File) AbsolutePos(begin, end int64) (int64, int64, error) {
	f.mu.RLock()
	n := f.chars
	f.mu.RUnlock()
	b, e, err := rangeresolve.Normalize(begin, end, n)
	if err != nil {
		return 0, 0, apierrors.Wrap(apierrors.KindParameter, "negative length", err)
	}
	return b, e, nil
}

// AbsoluteLinePos normalizes a signed line range into an absolute
// [begin,end) character range, with the trailing newline of the last
// requested line excluded.
func (f *File) AbsoluteLinePos(begin, end int64) (int64, int64, error) {
	f.mu.RLock()
	numLines := int64(len(f.lineIndex)) - 1
	n := f.chars
	lineIndex := f.lineIndex
	hasLines := f.hasLines
	f.mu.RUnlock()

	if !hasLines {
		return 0, 0, apierrors.New(apierrors.KindInternal, "line index not enabled for this text")
	}

	lineB, lineE, err := rangeresolve.Normalize(begin, end, numLines)
	if err != nil {
		return 0, 0, apierrors.Wrap(apierrors.KindParameter, "negative length", err)
	}

	beginChar, err := f.charForByte(lineIndex[lineB])
	if err != nil {
		return 0, 0, apierrors.Wrap(apierrors.KindText, "line index lookup failed", err)
	}

	var endChar int64
	if lineE == numLines {
		endChar = n
		if endChar > beginChar {
			var last [1]byte
			if _, err := f.source.ReadAt(last[:], f.bytes-1); err != nil {
				return 0, 0, apierrors.FromIOError(err)
			}
			if last[0] == '\n' {
				endChar-- // exclude the newline terminating the text's last line
			}
		}
	} else {
		endChar, err = f.charForByte(lineIndex[lineE])
		if err != nil {
			return 0, 0, apierrors.Wrap(apierrors.KindText, "line index lookup failed", err)
		}
		endChar-- // exclude the newline terminating the last requested line
		if endChar < beginChar {
			endChar = beginChar
		}
	}
	return beginChar, endChar, nil
}

// GetOrLoad takes a signed character range, normalizes it, ensures the
// covering bytes are resident, and returns the requested slice as a string.
func (f *File) GetOrLoad(begin, end int64) (string, error) {
	b, e, err := f.AbsolutePos(begin, end)
	if err != nil {
		return "", err
	}
	return f.loadCharRange(b, e)
}

// GetRange ensures the covering bytes for the already-resolved absolute
// character range [begin,end) are resident and returns them as a string.
// Unlike GetOrLoad, it does not route begin/end back through AbsolutePos:
// a caller that pre-resolved a signed range (to compare it against
// stream.Threshold, say) must use GetRange for the actual read, since
// AbsolutePos/rangeresolve.Normalize treat end==0 as "extend to the actual
// end of the document" — a sentinel meant for the original signed input,
// not for an already-resolved end that legitimately landed on 0.
func (f *File) GetRange(begin, end int64) (string, error) {
	return f.loadCharRange(begin, end)
}

// GetOrLoadLines is GetOrLoad over line coordinates.
func (f *File) GetOrLoadLines(begin, end int64) (string, error) {
	b, e, err := f.AbsoluteLinePos(begin, end)
	if err != nil {
		return "", err
	}
	return f.loadCharRange(b, e)
}

func (f *File) loadCharRange(beginChar, endChar int64) (string, error) {
	beginByte, err := f.byteForChar(beginChar)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindText, "char index lookup failed", err)
	}
	endByte, err := f.byteForChar(endChar)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindText, "char index lookup failed", err)
	}
	data, err := f.ensureResident(beginByte, endByte)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ensureResident returns the bytes for [b,e). It asks f.resident (the set
// of byte spans already backed by a segment) what, if anything, still
// needs to be read from disk, reads exactly that, and folds it into the
// resident set before assembling the answer out of whichever segments
// overlap [b,e).
func (f *File) ensureResident(b, e int64) ([]byte, error) {
	want := ranges.Range{Pos: b, Size: e - b}
	if want.IsEmpty() {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if missing := f.resident.FindMissing(want); !missing.IsEmpty() {
		buf := make([]byte, missing.Size)
		if _, err := f.source.ReadAt(buf, missing.Pos); err != nil && err != io.EOF {
			return nil, apierrors.FromIOError(err)
		}
		f.resident.Insert(missing)
		f.segments = append(f.segments, segment{Range: missing, Data: buf})
	}

	return f.collectResident(want), nil
}

// collectResident assembles want out of the segments that overlap it.
// Callers must already have established, via f.resident, that want is
// fully covered.
func (f *File) collectResident(want ranges.Range) []byte {
	out := make([]byte, want.Size)
	for _, s := range f.segments {
		overlap := s.Intersection(want)
		if overlap.IsEmpty() {
			continue
		}
		copy(out[overlap.Pos-want.Pos:overlap.End()-want.Pos], s.Data[overlap.Pos-s.Pos:overlap.End()-s.Pos])
	}
	return out
}

// byteForChar maps a character position to its byte offset using the
// checkpoint index.
func (f *File) byteForChar(c int64) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if c <= 0 {
		return 0, nil
	}
	if c >= f.chars {
		return f.bytes, nil
	}
	i := sort.Search(len(f.charIndex), func(i int) bool { return f.charIndex[i].Char > c }) - 1
	cp := f.charIndex[i]
	if cp.Char == c {
		return cp.Byte, nil
	}
	return f.scanRunes(cp.Byte, c-cp.Char, true)
}

// charForByte is the inverse of byteForChar: it maps a byte offset (which
// must already lie on a code-point boundary) to a character position.
func (f *File) charForByte(bytePos int64) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if bytePos <= 0 {
		return 0, nil
	}
	if bytePos >= f.bytes {
		return f.chars, nil
	}
	i := sort.Search(len(f.charIndex), func(i int) bool { return f.charIndex[i].Byte > bytePos }) - 1
	cp := f.charIndex[i]
	if cp.Byte == bytePos {
		return cp.Char, nil
	}
	chars, err := f.scanRunes(cp.Byte, bytePos-cp.Byte, false)
	if err != nil {
		return 0, err
	}
	return cp.Char + chars, nil
}

// scanRunes decodes runes forward from startByte. If byChars, count is a
// number of runes to skip and the returned value is the resulting byte
// offset. Otherwise count is a number of bytes to cover and the returned
// value is the number of runes decoded to reach exactly that many bytes.
func (f *File) scanRunes(startByte, count int64, byChars bool) (int64, error) {
	sr := io.NewSectionReader(f.source, startByte, f.bytes-startByte)
	br := bufio.NewReader(sr)

	if byChars {
		byteOff := startByte
		for i := int64(0); i < count; i++ {
			r, size, err := br.ReadRune()
			if err != nil {
				return 0, err
			}
			if r == utf8.RuneError && size == 1 {
				return 0, apierrors.New(apierrors.KindText, "invalid UTF-8 in source")
			}
			byteOff += int64(size)
		}
		return byteOff, nil
	}

	var consumed, chars int64
	for consumed < count {
		r, size, err := br.ReadRune()
		if err != nil {
			return 0, err
		}
		if r == utf8.RuneError && size == 1 {
			return 0, apierrors.New(apierrors.KindText, "invalid UTF-8 in source")
		}
		consumed += int64(size)
		chars++
	}
	return chars, nil
}

// rebuild performs a full single-pass UTF-8 scan computing chars, the
// checksum, char checkpoints, and (if hasLines) line-start offsets.
func (f *File) rebuild(mode Mode) error {
	if _, err := f.source.Seek(0, io.SeekStart); err != nil {
		return apierrors.FromIOError(err)
	}

	h := sha256.New()
	br := bufio.NewReaderSize(io.TeeReader(f.source, h), 64*1024)

	charIndex := []checkpoint{{Char: 0, Byte: 0}}
	var lineIndex []int64
	if mode == WithLineIndex {
		lineIndex = []int64{0}
	}

	var chars, byteOff int64
	for {
		r, size, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apierrors.Wrap(apierrors.KindInternal, "scanning source", err)
		}
		if r == utf8.RuneError && size == 1 {
			return apierrors.New(apierrors.KindText, "invalid UTF-8 in source")
		}
		chars++
		byteOff += int64(size)
		if chars%checkpointInterval == 0 {
			charIndex = append(charIndex, checkpoint{Char: chars, Byte: byteOff})
		}
		if mode == WithLineIndex && r == '\n' {
			lineIndex = append(lineIndex, byteOff)
		}
	}
	if mode == WithLineIndex && (len(lineIndex) == 0 || lineIndex[len(lineIndex)-1] != byteOff) {
		lineIndex = append(lineIndex, byteOff)
	}

	f.chars = chars
	f.charIndex = charIndex
	f.lineIndex = lineIndex
	f.hasLines = mode == WithLineIndex
	copy(f.checksum[:], h.Sum(nil))
	return nil
}
