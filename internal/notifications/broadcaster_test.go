package notifications_test

import (
	"testing"

	"capturesync/internal/notifications"
)

func TestBroadcasterRingKeepsNewest(t *testing.T) {
	b := notifications.NewBroadcaster(3)
	for i := int64(1); i <= 5; i++ {
		b.Publish(notifications.StatusEvent{RecordID: i})
	}

	recent := b.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	for i, ev := range recent {
		if want := int64(i + 3); ev.RecordID != want || ev.Seq != want {
			t.Fatalf("event %d = %+v, want record/seq %d", i, ev, want)
		}
	}

	since := b.Since(4)
	if len(since) != 1 || since[0].Seq != 5 {
		t.Fatalf("Since(4) = %+v", since)
	}
	if got := b.Recent(2); len(got) != 2 || got[0].Seq != 4 {
		t.Fatalf("Recent(2) = %+v", got)
	}
}

func TestBroadcasterSubscribeCancel(t *testing.T) {
	b := notifications.NewBroadcaster(0)
	ch, cancel := b.Subscribe(1)
	b.Publish(notifications.StatusEvent{RecordID: 1})
	b.Publish(notifications.StatusEvent{RecordID: 2})

	first := <-ch
	if first.RecordID != 1 {
		t.Fatalf("expected first event, got %+v", first)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
}
