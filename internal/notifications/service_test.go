package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"capturesync/internal/config"
	"capturesync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventUploadFailed, notifications.Payload{"recordId": int64(9)}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "upload completed",
			event: notifications.EventUploadCompleted,
			payload: notifications.Payload{
				"recordId": int64(42),
				"title":    "Team Sync",
				"files":    2,
			},
			expectTitle:   "capturesync - Uploaded",
			expectMessage: `Uploaded "Team Sync" (record #42) (2 files)`,
			expectTags:    "capturesync,upload,completed",
		},
		{
			name:  "upload failed",
			event: notifications.EventUploadFailed,
			payload: notifications.Payload{
				"recordId": int64(9),
				"error":    "503 backend error",
				"attempts": 3,
			},
			expectTitle:    "capturesync - Upload Failed",
			expectMessage:  "Upload failed for record #9: 503 backend error\nGave up after 3 attempts",
			expectTags:     "capturesync,upload,error",
			expectPriority: "high",
		},
		{
			name:           "auth required",
			event:          notifications.EventAuthRequired,
			payload:        notifications.Payload{"title": "Standup"},
			expectTitle:    "capturesync - Sign-in Required",
			expectMessage:  "Remote credentials expired while uploading \"Standup\".\nRun: capturesync auth login",
			expectTags:     "capturesync,auth,warning",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "capturesync - Test",
			expectMessage:  "Notification system test",
			expectTags:     "capturesync,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotTitle != tt.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tt.expectTitle)
			}
			if gotBody != tt.expectMessage {
				t.Fatalf("message = %q, want %q", gotBody, tt.expectMessage)
			}
			if gotTags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tt.expectTags)
			}
			if gotPriority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is reserved", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}
