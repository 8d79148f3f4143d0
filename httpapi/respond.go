package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/knaw-huc/textsurf/apierrors"
)

// writeError serializes err to the fixed ApiError JSON envelope
// at its mapped HTTP status. Non-apierrors errors are
// reported as an opaque InternalError, never leaking their message.
func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apierrors.StatusCode(apiErr))
	_ = json.NewEncoder(w).Encode(apiErr)
}

func toAPIError(err error) *apierrors.Error {
	var apiErr *apierrors.Error
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return apierrors.New(apierrors.KindInternal, "internal error")
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s)
}

func writeStream(w http.ResponseWriter, r io.Reader) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := io.Copy(w, r)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// negotiateJSON implements content negotiation for listing
// responses: JSON is the only offer, "*/*" also matches, and a missing
// Accept header is treated as accepting the offer.
func negotiateJSON(r *http.Request) error {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return nil
	}
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "*/*" || mt == "application/json" {
			return nil
		}
	}
	return apierrors.New(apierrors.KindNotAcceptable, "Accept header could not be satisfied (try application/json)")
}

// sortedStrings is a small helper so listing responses are deterministic.
func sortedStrings(ss []string) []string {
	sort.Strings(ss)
	return ss
}
