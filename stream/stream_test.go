package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMapper serves MapAbsolute directly out of an in-memory string,
// recording every (begin,end) it was asked for and never re-interpreting
// them (it slices content[begin:end] literally, including end==0).
type fakeMapper struct {
	content string
	calls   [][2]int64
}

func (f *fakeMapper) MapAbsolute(id string, begin, end int64, fn func(string) error) error {
	f.calls = append(f.calls, [2]int64{begin, end})
	return fn(f.content[begin:end])
}

func TestOpenMaterializesSmallRange(t *testing.T) {
	m := &fakeMapper{content: "hello, world"}
	body, reader, err := Open(m, "x", 0, 5, false)
	require.NoError(t, err)
	assert.Nil(t, reader)
	assert.Equal(t, "hello", body)
	assert.Len(t, m.calls, 1)
}

func TestOpenMaterializesWhenForced(t *testing.T) {
	m := &fakeMapper{content: strings.Repeat("a", 2*Threshold)}
	body, reader, err := Open(m, "x", 0, int64(len(m.content)), true)
	require.NoError(t, err)
	assert.Nil(t, reader)
	assert.Equal(t, m.content, body)
}

func TestOpenStreamsLargeRangeInChunks(t *testing.T) {
	content := strings.Repeat("0123456789", Threshold/5) // 2*Threshold chars
	m := &fakeMapper{content: content}

	_, reader, err := Open(m, "x", 0, int64(len(content)), false)
	require.NoError(t, err)
	require.NotNil(t, reader)

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	assert.Greater(t, len(m.calls), 1, "a range above Threshold must be pulled in more than one chunk")
	for _, c := range m.calls {
		assert.LessOrEqual(t, c[1]-c[0], int64(ChunkSize))
	}
}

func TestOpenStreamRespectsSmallBufferReads(t *testing.T) {
	content := strings.Repeat("x", Threshold+10)
	m := &fakeMapper{content: content}

	_, reader, err := Open(m, "x", 0, int64(len(content)), false)
	require.NoError(t, err)

	var out []byte
	buf := make([]byte, 3)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, content, string(out))
}

func TestOpenEmptyRangeIsMaterialized(t *testing.T) {
	m := &fakeMapper{content: "abc"}
	body, reader, err := Open(m, "x", 0, 0, false)
	require.NoError(t, err)
	assert.Nil(t, reader)
	assert.Equal(t, "", body)
}

// TestOpenResolvedZeroEndIsNotReexpanded guards against treating an
// already-resolved end==0 (a legitimate empty range, e.g. from a request
// that clamped entirely before the start of the text) as the raw-input
// "extend to actual end" sentinel. Open must hand begin/end to MapAbsolute
// exactly as given, never re-running them through normalization.
func TestOpenResolvedZeroEndIsNotReexpanded(t *testing.T) {
	m := &fakeMapper{content: "Hello, world!\n"}
	body, reader, err := Open(m, "x", 0, 0, false)
	require.NoError(t, err)
	assert.Nil(t, reader)
	assert.Equal(t, "", body)
	assert.Equal(t, [][2]int64{{0, 0}}, m.calls)
}

func TestOpenPropagatesMapError(t *testing.T) {
	m := &erroringMapper{}
	_, _, err := Open(m, "x", 0, 5, false)
	assert.Error(t, err)
}

type erroringMapper struct{}

func (erroringMapper) MapAbsolute(id string, begin, end int64, fn func(string) error) error {
	return assert.AnError
}
