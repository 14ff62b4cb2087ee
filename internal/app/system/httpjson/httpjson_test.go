package httpjson

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "Dana", "extra": true}`))

	if err := Decode(req, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Name != "Dana" {
		t.Errorf("name = %q", dst.Name)
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	var dst struct{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	if err := Decode(req, &dst); err == nil {
		t.Fatal("decode of empty body succeeded, want error")
	}
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	var dst struct {
		Blob string `json:"blob"`
	}
	huge := `{"blob": "` + strings.Repeat("x", maxBodyBytes+1) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))

	if err := Decode(req, &dst); err == nil {
		t.Fatal("decode of oversized body succeeded, want error")
	}
}
