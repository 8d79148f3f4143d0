package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/knaw-huc/textsurf/apierrors"
)

// rangeQuery is the parsed form of a request's char/line/length/md5 query
// parameters
type rangeQuery struct {
	begin, end int64
	byLine     bool
	length     *int64
	md5        string
}

// parseRangeQuery reads char=B,E / line=B,E / begin=B&end=E / length=L /
// md5=H from r's query string. A missing side of a range defaults to 0.
// The range forms are mutually exclusive; line wins over char, and char
// over begin/end.
func parseRangeQuery(r *http.Request) (rangeQuery, error) {
	q := r.URL.Query()
	var rq rangeQuery

	if v := q.Get("line"); v != "" {
		b, e, err := parsePair(v)
		if err != nil {
			return rq, err
		}
		rq.begin, rq.end, rq.byLine = b, e, true
	} else if v := q.Get("char"); v != "" {
		b, e, err := parsePair(v)
		if err != nil {
			return rq, err
		}
		rq.begin, rq.end = b, e
	} else if bv, ev := q.Get("begin"), q.Get("end"); bv != "" || ev != "" {
		b, err := parseSignedOrZero(bv)
		if err != nil {
			return rq, err
		}
		e, err := parseSignedOrZero(ev)
		if err != nil {
			return rq, err
		}
		rq.begin, rq.end = b, e
	}

	if v := q.Get("length"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return rq, apierrors.New(apierrors.KindParameter, "length must be an integer")
		}
		rq.length = &n
	}
	rq.md5 = strings.ToLower(q.Get("md5"))
	return rq, nil
}

// parsePair parses "B,E" into two signed integers, defaulting either side
// that is empty to 0.
func parsePair(s string) (int64, int64, error) {
	parts := strings.SplitN(s, ",", 2)
	begin, err := parseSignedOrZero(parts[0])
	if err != nil {
		return 0, 0, err
	}
	var end int64
	if len(parts) > 1 {
		end, err = parseSignedOrZero(parts[1])
		if err != nil {
			return 0, 0, err
		}
	}
	return begin, end, nil
}

func parseSignedOrZero(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apierrors.New(apierrors.KindParameter, "range offsets must be integers")
	}
	return n, nil
}
