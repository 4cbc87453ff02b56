package testutil

import (
	"net/http"
	"testing"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestServeAndDecode(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"remote":"` + r.RemoteAddr + `"}`))
	})

	rec := Serve(h, LocalRequest(http.MethodGet, "/x", nil))
	AssertStatusCode(t, rec.Code, http.StatusOK)
	AssertHeader(t, rec, "Content-Type", "application/json")

	var body map[string]string
	DecodeJSON(t, rec, &body)
	if body["remote"] != "127.0.0.1:12345" {
		t.Errorf("remote = %q", body["remote"])
	}
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/data")
	if req.Method != http.MethodPost || req.URL.Path != "/data" {
		t.Errorf("got %s %s", req.Method, req.URL.Path)
	}
}
