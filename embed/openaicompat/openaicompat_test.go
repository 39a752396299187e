package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	passage "github.com/passagedev/passage"
)

func TestEmbedSendsBatchAndOrdersByIndex(t *testing.T) {
	var gotAuth string
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		// Reply out of order to exercise index placement.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1, 0}},
				{"index": 0, "embedding": []float32{1, 0, 0}},
			},
		})
	}))
	defer srv.Close()

	p := New("secret", "test-embed", srv.URL, 3)
	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-embed" || len(gotReq.Input) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors misordered: %v", vecs)
	}
}

func TestEmbedServerErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New("", "m", srv.URL, 3)
	_, err := p.Embed(context.Background(), []string{"text"})
	var pu *passage.ProviderUnavailableError
	if !errors.As(err, &pu) {
		t.Fatalf("err = %v, want ProviderUnavailableError", err)
	}
}

func TestEmbedRejectsWrongDimensionality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1, 0}}},
		})
	}))
	defer srv.Close()

	p := New("", "m", srv.URL, 3)
	_, err := p.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected dimensionality error")
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	p := New("", "m", srv.URL, 3)
	_, err := p.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	p := New("", "m", "http://unreachable.invalid", 3)
	vecs, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if vecs != nil {
		t.Errorf("vecs = %v, want nil", vecs)
	}
}
