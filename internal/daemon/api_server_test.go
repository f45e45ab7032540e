package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"capturesync/internal/api"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*apiServer, *queue.Store, *notifications.Broadcaster) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	events := notifications.NewBroadcaster(16)
	srv := newAPIHandler("127.0.0.1:0", token, apiHandlers{
		status: func(context.Context) api.DaemonStatus { return api.DaemonStatus{Running: true, Backend: "drive"} },
		queue:  api.NewQueueService(store),
		events: events,
	}, logging.NewNop())
	return srv, store, events
}

func serve(srv *apiServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	return w
}

func TestAPIServerHandleQueue(t *testing.T) {
	srv, store, _ := newTestAPI(t, "")
	rec := testsupport.NewRecord(t, store, "Team Sync", "")
	if _, err := store.Enqueue(context.Background(), rec.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/queue?status=pending", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].RecordTitle != "Team Sync" || resp.Items[0].RecordID != rec.ID {
		t.Fatalf("unexpected item: %+v", resp.Items[0])
	}
}

func TestAPIServerRejectsUnknownStatus(t *testing.T) {
	srv, _, _ := newTestAPI(t, "")
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/queue?status=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerRecordLookup(t *testing.T) {
	srv, store, _ := newTestAPI(t, "")
	rec := testsupport.NewRecord(t, store, "Ops Review", "")

	if w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/records/999", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown record, got %d", w.Code)
	}
	if w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/records/abc", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/records/"+strconv.FormatInt(rec.ID, 10), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.RecordResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Detail.Record.Title != "Ops Review" || resp.Detail.Item != nil {
		t.Fatalf("unexpected detail: %+v", resp.Detail)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	srv, _, _ := newTestAPI(t, "secret")

	if w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/status", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := serve(srv, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := serve(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.Backend != "drive" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAPIServerStreamsEvents(t *testing.T) {
	srv, _, events := newTestAPI(t, "")
	events.Publish(notifications.StatusEvent{Type: notifications.TypeStatusChanged, RecordID: 1, Status: queue.UploadPending})

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events?since=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var first notifications.StatusEvent
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read replayed event: %v", err)
	}
	if first.Seq != 1 || first.RecordID != 1 {
		t.Fatalf("unexpected replayed event: %+v", first)
	}

	events.Publish(notifications.StatusEvent{Type: notifications.TypeStatusChanged, RecordID: 2, Status: queue.UploadUploading})
	var second notifications.StatusEvent
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("read live event: %v", err)
	}
	if second.Seq != 2 || second.Status != queue.UploadUploading {
		t.Fatalf("unexpected live event: %+v", second)
	}
}
