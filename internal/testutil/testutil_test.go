package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateHTTPRequestWithBody(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/x", map[string]string{"a": "b"})

	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q, want application/json", got)
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != `{"a":"b"}` {
		t.Errorf("body = %s, want marshaled JSON", data)
	}
}

func TestCreateHTTPRequestWithoutBody(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodGet, "/x", nil)
	if req.Header.Get("Content-Type") != "" {
		t.Error("content type set for bodyless request")
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Body.WriteString(`{"status": "ok", "result": {"n": 1}}`)

	resp := AssertJSONResponse(t, rec, "ok")
	if _, ok := resp["result"]; !ok {
		t.Error("decoded response missing result field")
	}
}
