package httpapi

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/knaw-huc/textsurf/apierrors"
	"github.com/knaw-huc/textsurf/pool"
	"github.com/knaw-huc/textsurf/stream"
)

// api holds the dependencies every handler needs.
type api struct {
	pool *pool.Pool
	log  *logrus.Logger
}

// statJSON is the plain stat response shape
type statJSON struct {
	Chars    int64  `json:"chars"`
	Bytes    int64  `json:"bytes"`
	Mtime    int64  `json:"mtime"`
	Checksum string `json:"checksum"`
}

// api2StatJSON adds the JSON-LD envelope fields api2 stat responses carry.
type api2StatJSON struct {
	Context  string `json:"@context"`
	Type     string `json:"type"`
	Protocol string `json:"protocol"`
	statJSON
}

func (a *api) list(w http.ResponseWriter, r *http.Request) {
	if err := negotiateJSON(r); err != nil {
		writeError(w, err)
		return
	}
	ids, err := walkTexts(a.pool.BaseDir(), a.pool.Extension())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sortedStrings(ids))
}

func (a *api) deleteAll(w http.ResponseWriter, r *http.Request) {
	ids, err := walkTexts(a.pool.BaseDir(), a.pool.Extension())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, id := range ids {
		if err := a.pool.DeleteText(id); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) stat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	st, err := a.pool.Stat(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statJSON{
		Chars:    st.Chars,
		Bytes:    st.Bytes,
		Mtime:    st.Mtime.Unix(),
		Checksum: st.Checksum,
	})
}

// get serves GET /*id: resolves the request's char/line range (defaulting
// to the whole text), applies the length/md5 post-checks, and either
// streams or materializes the body per stream.Open's threshold.
func (a *api) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	a.serveRange(w, r, id)
}

func (a *api) serveRange(w http.ResponseWriter, r *http.Request, id string) {
	rq, err := parseRangeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var begin, end int64
	if rq.byLine {
		begin, end, err = a.pool.AbsoluteLinePos(id, rq.begin, rq.end)
	} else {
		begin, end, err = a.pool.AbsolutePos(id, rq.begin, rq.end)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	force := rq.length != nil || rq.md5 != ""
	body, reader, err := stream.Open(a.pool, id, begin, end, force)
	if err != nil {
		writeError(w, err)
		return
	}

	if force {
		if rq.length != nil && int64(len([]rune(body))) != *rq.length {
			writeError(w, apierrors.New(apierrors.KindPermissionDenied, "length check failed"))
			return
		}
		if rq.md5 != "" {
			sum := md5.Sum([]byte(body))
			if hex.EncodeToString(sum[:]) != rq.md5 {
				writeError(w, apierrors.New(apierrors.KindPermissionDenied, "md5 check failed"))
				return
			}
		}
		writeText(w, body)
		return
	}

	if reader != nil {
		if err := writeStream(w, reader); err != nil {
			a.log.WithError(err).Debug("client disconnected mid-stream")
		}
		return
	}
	writeText(w, body)
}

func (a *api) create(w http.ResponseWriter, r *http.Request) {
	a.write(w, r, false)
}

func (a *api) put(w http.ResponseWriter, r *http.Request) {
	a.write(w, r, true)
}

func (a *api) write(w http.ResponseWriter, r *http.Request, overwrite bool) {
	id := chi.URLParam(r, "*")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.KindInternal, "reading request body", err))
		return
	}
	created, err := a.pool.NewText(id, string(body), overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
}

// deleteOne serves DELETE /*id. When id names a directory rather than a
// single text, every text beneath it is walked and deleted instead.
func (a *api) deleteOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if err := a.pool.DeleteText(id); err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	} else if kind := apiKind(err); kind != apierrors.KindNotFound {
		writeError(w, err)
		return
	}

	dir, isDir, err := a.pool.DirPath(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isDir {
		writeError(w, apierrors.New(apierrors.KindNotFound, "no such text"))
		return
	}
	subIDs, err := walkTexts(dir, a.pool.Extension())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, sub := range subIDs {
		if err := a.pool.DeleteText(id + "/" + sub); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func apiKind(err error) apierrors.Kind {
	var kind apierrors.Kind
	apierrors.As(err, &kind)
	return kind
}

// --- api2 family: pipe-delimited IDs, JSON-LD stat, "region" addressing.

func (a *api) api2ID(r *http.Request) string {
	return pool.TranslateAPI2ID(chi.URLParam(r, "id"))
}

func (a *api) api2Get(w http.ResponseWriter, r *http.Request) {
	id := a.api2ID(r)
	a.serveRange(w, r, id)
}

func (a *api) api2GetRegion(w http.ResponseWriter, r *http.Request) {
	id := a.api2ID(r)
	region := chi.URLParam(r, "region")

	switch region {
	case "info.json":
		st, err := a.pool.Stat(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api2StatJSON{
			Context:  "https://w3id.org/textsurf/api2.jsonld",
			Type:     "TextService2",
			Protocol: "https://w3id.org/textsurf/api2",
			statJSON: statJSON{
				Chars:    st.Chars,
				Bytes:    st.Bytes,
				Mtime:    st.Mtime.Unix(),
				Checksum: st.Checksum,
			},
		})
		return
	case "full":
		absBegin, absEnd, err := a.pool.AbsolutePos(id, 0, 0)
		if err != nil {
			writeError(w, err)
			return
		}
		a.serveRangeAbsolute(w, id, absBegin, absEnd, false)
		return
	}

	byLine := false
	spec := region
	if rest, ok := strings.CutPrefix(region, "char:"); ok {
		spec = rest
	} else if rest, ok := strings.CutPrefix(region, "line:"); ok {
		spec, byLine = rest, true
	}
	begin, end, err := parsePair(spec)
	if err != nil {
		writeError(w, err)
		return
	}

	var absBegin, absEnd int64
	if byLine {
		absBegin, absEnd, err = a.pool.AbsoluteLinePos(id, begin, end)
	} else {
		absBegin, absEnd, err = a.pool.AbsolutePos(id, begin, end)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	a.serveRangeAbsolute(w, id, absBegin, absEnd, false)
}

func (a *api) serveRangeAbsolute(w http.ResponseWriter, id string, begin, end int64, force bool) {
	body, reader, err := stream.Open(a.pool, id, begin, end, force)
	if err != nil {
		writeError(w, err)
		return
	}
	if reader != nil {
		if err := writeStream(w, reader); err != nil {
			a.log.WithError(err).Debug("client disconnected mid-stream")
		}
		return
	}
	writeText(w, body)
}

func (a *api) api2Create(w http.ResponseWriter, r *http.Request) {
	a.writeAPI2(w, r, false)
}

func (a *api) api2Put(w http.ResponseWriter, r *http.Request) {
	a.writeAPI2(w, r, true)
}

func (a *api) writeAPI2(w http.ResponseWriter, r *http.Request, overwrite bool) {
	id := a.api2ID(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.KindInternal, "reading request body", err))
		return
	}
	created, err := a.pool.NewText(id, string(body), overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
}

func (a *api) api2Delete(w http.ResponseWriter, r *http.Request) {
	id := a.api2ID(r)
	if err := a.pool.DeleteText(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
