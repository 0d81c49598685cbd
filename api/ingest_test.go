package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/sink"
	"github.com/pithecene-io/assay/storage"
	"github.com/pithecene-io/assay/stream"
)

const eventBody = `{
	"event_id": "e1",
	"ts": "2025-01-15T10:00:00Z",
	"user_id": "u1",
	"amount": 50.0,
	"currency": "USD",
	"country": "US",
	"device_id": "d1",
	"ip": "1.1.1.1",
	"merchant_id": "m1"
}`

type ingestFixture struct {
	mr     *miniredis.Miniredis
	client *redis.Client
	writer *sink.Writer
	stub   *storage.StubStore
	srv    *httptest.Server
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stub := storage.NewStubStore()
	writer := sink.NewWriter(stub, sink.Config{BatchSize: 100, FlushInterval: time.Hour})
	t.Cleanup(func() { _ = writer.Close() })

	handler := NewIngest(writer, stream.NewPublisher(client, "transaction_events", 0), metrics.NewIngest(), nil)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)

	return &ingestFixture{mr: mr, client: client, writer: writer, stub: stub, srv: srv}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestIngest_AcceptsEvent(t *testing.T) {
	fx := newIngestFixture(t)

	resp := postJSON(t, fx.srv.URL+"/events", eventBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["event_id"] != "e1" {
		t.Errorf("unexpected body %v", body)
	}

	if fx.writer.Size() != 1 {
		t.Errorf("expected 1 buffered event, got %d", fx.writer.Size())
	}
	length, err := fx.client.XLen(context.Background(), "transaction_events").Result()
	if err != nil || length != 1 {
		t.Errorf("expected 1 stream entry, got %d (%v)", length, err)
	}
}

func TestIngest_RejectsInvalidEvent(t *testing.T) {
	fx := newIngestFixture(t)

	// user_id missing.
	body := strings.Replace(eventBody, `"user_id": "u1",`, "", 1)
	resp := postJSON(t, fx.srv.URL+"/events", body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if fx.writer.Size() != 0 {
		t.Errorf("rejected event must not be buffered")
	}
	if length, _ := fx.client.XLen(context.Background(), "transaction_events").Result(); length != 0 {
		t.Errorf("rejected event must not be published, got %d entries", length)
	}
}

func TestIngest_RejectsMalformedJSON(t *testing.T) {
	fx := newIngestFixture(t)

	resp := postJSON(t, fx.srv.URL+"/events", "{not json")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestIngest_PublishFailureIs500(t *testing.T) {
	fx := newIngestFixture(t)
	fx.mr.Close()

	resp := postJSON(t, fx.srv.URL+"/events", eventBody)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["detail"] == "" {
		t.Error("expected error detail")
	}
}

func TestIngest_Health(t *testing.T) {
	fx := newIngestFixture(t)

	resp, err := http.Get(fx.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["redis"] != "connected" {
		t.Errorf("unexpected health %v", body)
	}
}

func TestIngest_HealthUnreachableRedis(t *testing.T) {
	fx := newIngestFixture(t)
	fx.mr.Close()

	resp, err := http.Get(fx.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body)
	}
}

func TestIngest_MetricsExposition(t *testing.T) {
	fx := newIngestFixture(t)

	postJSON(t, fx.srv.URL+"/events", eventBody)

	resp, err := http.Get(fx.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "ingest_events_total") {
		t.Errorf("exposition missing ingest_events_total:\n%s", raw)
	}
}
