package textfile

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
)

var sidecarMagic = [4]byte{'T', 'X', 'S', '1'}

const sidecarVersion = 1

const lineIndexFlag = 1 << 0

// loadSidecar attempts to load indexPath and install its contents into f.
// It returns false (leaving f untouched) if the file is absent, malformed,
// or stale with respect to the source's mtime/size.
func (f *File) loadSidecar(indexPath string) bool {
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		return false
	}

	const headerSize = 4 + 1 + 1 + 2 + 8 + 8 + 8 + 32 + 4 + 4
	if len(raw) < headerSize {
		return false
	}

	var magic [4]byte
	copy(magic[:], raw[0:4])
	if magic != sidecarMagic {
		return false
	}
	version := raw[4]
	if version != sidecarVersion {
		return false
	}
	flags := raw[5]
	// raw[6:8] is padding

	sourceMTime := int64(binary.LittleEndian.Uint64(raw[8:16]))
	sourceBytes := int64(binary.LittleEndian.Uint64(raw[16:24]))
	if sourceMTime != f.mtime.UnixNano() || sourceBytes != f.bytes {
		return false
	}
	hasLines := flags&lineIndexFlag != 0
	if hasLines != f.hasLines {
		return false
	}

	chars := int64(binary.LittleEndian.Uint64(raw[24:32]))
	var checksum [32]byte
	copy(checksum[:], raw[32:64])
	numCharCkpt := binary.LittleEndian.Uint32(raw[64:68])
	numLineCkpt := binary.LittleEndian.Uint32(raw[68:72])

	off := headerSize
	wantLen := off + int(numCharCkpt)*16 + int(numLineCkpt)*8
	if len(raw) != wantLen {
		return false
	}

	charIndex := make([]checkpoint, numCharCkpt)
	for i := range charIndex {
		charIndex[i].Char = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		off += 8
		charIndex[i].Byte = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		off += 8
	}

	var lineIndex []int64
	if numLineCkpt > 0 {
		lineIndex = make([]int64, numLineCkpt)
		for i := range lineIndex {
			lineIndex[i] = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
			off += 8
		}
	}

	f.chars = chars
	f.checksum = checksum
	f.charIndex = charIndex
	f.lineIndex = lineIndex
	f.hasLines = hasLines
	return true
}

// writeSidecar writes the index atomically: a temp file in the same
// directory followed by a rename, so a concurrent open never observes a
// partially written sidecar.
func (f *File) writeSidecar(indexPath string) error {
	buf := make([]byte, 0, 72+len(f.charIndex)*16+len(f.lineIndex)*8)

	header := make([]byte, 72)
	copy(header[0:4], sidecarMagic[:])
	header[4] = sidecarVersion
	if f.hasLines {
		header[5] = lineIndexFlag
	}
	binary.LittleEndian.PutUint64(header[8:16], uint64(f.mtime.UnixNano()))
	binary.LittleEndian.PutUint64(header[16:24], uint64(f.bytes))
	binary.LittleEndian.PutUint64(header[24:32], uint64(f.chars))
	copy(header[32:64], f.checksum[:])
	binary.LittleEndian.PutUint32(header[64:68], uint32(len(f.charIndex)))
	binary.LittleEndian.PutUint32(header[68:72], uint32(len(f.lineIndex)))
	buf = append(buf, header...)

	var entry [8]byte
	for _, cp := range f.charIndex {
		binary.LittleEndian.PutUint64(entry[:], uint64(cp.Char))
		buf = append(buf, entry[:]...)
		binary.LittleEndian.PutUint64(entry[:], uint64(cp.Byte))
		buf = append(buf, entry[:]...)
	}
	for _, b := range f.lineIndex {
		binary.LittleEndian.PutUint64(entry[:], uint64(b))
		buf = append(buf, entry[:]...)
	}

	tmp, err := os.CreateTemp(filepath.Dir(indexPath), filepath.Base(indexPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, indexPath)
}

func hexDigest(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}
