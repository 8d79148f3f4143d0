package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knaw-huc/textsurf/pool"
)

func newTestServer(t *testing.T, opts pool.Options) (http.Handler, *pool.Pool) {
	t.Helper()
	if opts.BaseDir == "" {
		opts.BaseDir = t.TempDir()
	}
	if opts.Extension == "" {
		opts.Extension = "txt"
	}
	if opts.WaitInterval == 0 {
		opts.WaitInterval = time.Millisecond
	}
	if opts.UnloadTime == 0 {
		opts.UnloadTime = time.Hour
	}
	p, err := pool.New(opts)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(p, log, ""), p
}

func TestGetRoundTrip(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("hello", "Hello, world!\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello?char=7,12", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "world", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestGetOutOfRangeClampsToEmptyNotWholeText guards against re-resolving
// an already-clamped range: a request whose absolute begin/end both clamp
// to 0 must return an empty body, not the whole text (which is what a
// second, internal re-normalization of end==0 would wrongly produce).
func TestGetOutOfRangeClampsToEmptyNotWholeText(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("hello", "Hello, world!\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello?char=-20,-19", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Body.String())
}

func TestGetWholeTextDefaultsToFullRange(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("hello", "Hello, world!\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, world!\n", rec.Body.String())
}

func TestGetLineRange(t *testing.T) {
	h, p := newTestServer(t, pool.Options{LineIndex: true})
	_, err := p.NewText("lines", "a\nbb\nccc\ndddd\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lines?line=1,3", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bb\nccc", rec.Body.String())
}

func TestGetMissingTextIs404(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"NotFound"`)
}

func TestGetSandboxesTraversal(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/../etc/passwd", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostThenGetRoundTrip(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/a/b/c", strings.NewReader("x"))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/a/b/c", strings.NewReader("x"))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/a/b/c", strings.NewReader("y"))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/a/b/c", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "y", rec.Body.String())
}

func TestDeleteOne(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("gone", "x", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/gone", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/gone", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDirectoryWalksSubtree(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("sub/a", "1", false)
	require.NoError(t, err)
	_, err = p.NewText("sub/b", "2", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/sub", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = os.Stat(filepath.Join(p.BaseDir(), "sub", "a.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(p.BaseDir(), "sub", "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatEndpoint(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("utf", "café\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stat/utf", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chars":5`)
	assert.Contains(t, rec.Body.String(), `"bytes":6`)
}

func TestListEndpoint(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("one", "1", false)
	require.NoError(t, err)
	_, err = p.NewText("two", "2", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"one"`)
	assert.Contains(t, rec.Body.String(), `"two"`)
}

func TestListRejectsUnacceptableAccept(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/plain")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestLengthCheck(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("hello", "Hello, world!\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello?char=7,12&length=5", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "world", rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/hello?char=7,12&length=4", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMD5Check(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("hello", "Hello, world!\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	// md5("world") = 7d793037a0760186574b0282f2f435e7
	req := httptest.NewRequest(http.MethodGet, "/hello?char=7,12&md5=7d793037a0760186574b0282f2f435e7", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/hello?char=7,12&md5=deadbeef", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI2GetTranslatesPipes(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("a/b/c", "hello", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api2/a|b|c", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestAPI2InfoJSON(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("x", "hello", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api2/x/info.json", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"@context"`)
	assert.Contains(t, rec.Body.String(), `"chars":5`)
}

func TestAPI2RegionCharAndLine(t *testing.T) {
	h, p := newTestServer(t, pool.Options{LineIndex: true})
	_, err := p.NewText("lines", "a\nbb\nccc\ndddd\n", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api2/lines/full", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a\nbb\nccc\ndddd\n", rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api2/lines/line:1,3", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bb\nccc", rec.Body.String())
}

func TestSwaggerAndOpenAPIServed(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api-doc/openapi.json", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"openapi"`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/swagger-ui", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenAPIServersOmittedWithoutBaseURL(t *testing.T) {
	h, _ := newTestServer(t, pool.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api-doc/openapi.json", nil)
	h.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), `"servers"`)
}

func TestOpenAPIServersStampedWithBaseURL(t *testing.T) {
	_, p := newTestServer(t, pool.Options{})
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewRouter(p, log, "https://texts.example.org/")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api-doc/openapi.json", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"servers"`)
	assert.Contains(t, rec.Body.String(), `https://texts.example.org/`)
}

func TestServerHeaderStamped(t *testing.T) {
	h, p := newTestServer(t, pool.Options{})
	_, err := p.NewText("x", "y", false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	h.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Server"), "textsurf/")
}
