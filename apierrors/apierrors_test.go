package apierrors

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func TestMarshalJSON(t *testing.T) {
	err := New(KindNotFound, "no such text exists")
	b, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("unexpected marshal error: %v", marshalErr)
	}
	want := `{"@type":"ApiError","name":"NotFound","message":"no such text exists"}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestStatusCode(t *testing.T) {
	for _, tt := range []struct {
		kind Kind
		want int
	}{
		{KindInternal, http.StatusInternalServerError},
		{KindPermissionDenied, http.StatusForbidden},
		{KindNotAcceptable, http.StatusNotAcceptable},
		{KindNotFound, http.StatusNotFound},
		{KindParameter, http.StatusNotFound},
		{KindText, http.StatusNotFound},
	} {
		got := StatusCode(New(tt.kind, "x"))
		if got != tt.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if got := StatusCode(nil); got != http.StatusInternalServerError {
		t.Errorf("StatusCode(nil) = %d, want 500", got)
	}
}

func TestFromIOError(t *testing.T) {
	notFound := FromIOError(os.ErrNotExist)
	if notFound.Kind != KindNotFound {
		t.Errorf("expected NotFound, got %s", notFound.Kind)
	}
	denied := FromIOError(os.ErrPermission)
	if denied.Kind != KindPermissionDenied {
		t.Errorf("expected PermissionDenied, got %s", denied.Kind)
	}
	other := FromIOError(os.ErrClosed)
	if other.Kind != KindInternal {
		t.Errorf("expected InternalError, got %s", other.Kind)
	}
	if FromIOError(nil) != nil {
		t.Errorf("expected nil for nil input")
	}
}

func TestAs(t *testing.T) {
	var kind Kind
	if !As(Wrap(KindText, "bad utf8", os.ErrInvalid), &kind) {
		t.Fatal("expected As to succeed")
	}
	if kind != KindText {
		t.Errorf("got %s, want TextError", kind)
	}
	if As(os.ErrInvalid, &kind) {
		t.Error("As should fail for a plain error")
	}
}
