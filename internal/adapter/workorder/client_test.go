package workorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
)

func newTestClient(url string) *Client {
	c := NewClient(url, time.Second, 3, 0)
	c.retryDelay = time.Millisecond
	return c
}

func TestClientInjectsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathPOISearch {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "光谷广场" {
			t.Errorf("unexpected body: %+v", body)
		}
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":[{"name":"光谷广场","x":114.4,"y":30.5,"address":"武汉"}]}`)
	}))
	defer server.Close()

	ctx, carrier := credential.Set(context.Background(), "tok-123")
	defer carrier.Clear()

	pois, err := newTestClient(server.URL).SearchPOI(ctx, "光谷广场")
	if err != nil {
		t.Fatalf("SearchPOI failed: %v", err)
	}
	if len(pois) != 1 || pois[0].X != 114.4 {
		t.Fatalf("unexpected pois: %+v", pois)
	}
}

func TestClientRequiresCredential(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).NatureList(context.Background())
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request without credential")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"code":0,"data":1001}`)
	}))
	defer server.Close()

	ctx, carrier := credential.Set(context.Background(), "tok")
	defer carrier.Clear()

	id, err := newTestClient(server.URL).CreateOrder(ctx, CreateOrderRequest{Name: "order", Source: SourceAI})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if id != 1001 || calls.Load() != 3 {
		t.Fatalf("unexpected id %d after %d calls", id, calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad request")
	}))
	defer server.Close()

	ctx, carrier := credential.Set(context.Background(), "tok")
	defer carrier.Clear()

	_, err := newTestClient(server.URL).RoutesByRadius(ctx, RouteRequest{Lon: 1, Lat: 2, Radius: 2000})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestClientBusinessErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":500101,"msg":"route not found"}`)
	}))
	defer server.Close()

	ctx, carrier := credential.Set(context.Background(), "tok")
	defer carrier.Clear()

	_, err := newTestClient(server.URL).RouteByID(ctx, "7")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 500101 {
		t.Fatalf("expected business APIError, got %v", err)
	}
}

func TestClientClearedCredential(t *testing.T) {
	ctx, carrier := credential.Set(context.Background(), "tok")
	carrier.Clear()

	_, err := newTestClient("http://127.0.0.1:1").NatureList(ctx)
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after clear, got %v", err)
	}
}
