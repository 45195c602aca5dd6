package dispatch

import (
	"fmt"
	"testing"
	"time"

	"sentinel-worker-go/internal/models"
)

func alertWithID(id string) models.Alert {
	return models.Alert{ID: id, Timestamp: time.Now()}
}

func TestPublishEvictsOldestBeyondCapacity(t *testing.T) {
	d := New(3)
	for i := 0; i < 5; i++ {
		d.Publish(alertWithID(fmt.Sprintf("a%d", i)))
	}

	recent := d.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(recent))
	}
	if recent[0].ID != "a2" || recent[2].ID != "a4" {
		t.Fatalf("expected the 3 most recent alerts to survive, got %+v", recent)
	}
}

func TestSubscribeReplaysLastTwenty(t *testing.T) {
	d := New(200)
	for i := 0; i < 25; i++ {
		d.Publish(alertWithID(fmt.Sprintf("a%d", i)))
	}

	ch, unsubscribe := d.Subscribe(32)
	defer unsubscribe()

	received := make([]models.Alert, 0, 20)
	for i := 0; i < 20; i++ {
		select {
		case a := <-ch:
			received = append(received, a)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for replayed alert %d", i)
		}
	}

	if received[0].ID != "a5" {
		t.Fatalf("expected replay to start at a5 (last 20 of 25), got %s", received[0].ID)
	}
	if received[19].ID != "a24" {
		t.Fatalf("expected replay to end at a24, got %s", received[19].ID)
	}
}

func TestPublishDropsOldestOnFullSubscriberQueue(t *testing.T) {
	d := New(200)
	ch, unsubscribe := d.Subscribe(2)
	defer unsubscribe()

	d.Publish(alertWithID("a0"))
	d.Publish(alertWithID("a1"))
	d.Publish(alertWithID("a2"))

	first := <-ch
	second := <-ch
	if first.ID != "a1" || second.ID != "a2" {
		t.Fatalf("expected drop-oldest to leave [a1, a2], got [%s, %s]", first.ID, second.ID)
	}
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	d := New(200)
	d.Publish(alertWithID("a0"))

	if !d.Acknowledge("a0") {
		t.Fatal("expected first acknowledge to succeed")
	}
	if !d.Acknowledge("a0") {
		t.Fatal("expected second acknowledge of the same id to also succeed")
	}
	if d.Acknowledge("unknown") {
		t.Fatal("expected acknowledge of an unpublished id to fail")
	}
}

func TestPublishDropIncrementsPerSubscriberCounter(t *testing.T) {
	d := New(200)
	ch, unsubscribe := d.Subscribe(1)
	defer unsubscribe()

	d.Publish(alertWithID("a0"))
	d.Publish(alertWithID("a1")) // queue full: drops a0
	d.Publish(alertWithID("a2")) // drops a1

	counts := d.DropCounts()
	if len(counts) != 1 {
		t.Fatalf("expected exactly one subscriber's drop count, got %+v", counts)
	}
	for _, n := range counts {
		if n != 2 {
			t.Fatalf("expected drop count 2, got %d", n)
		}
	}

	<-ch // drain so the goroutine-free test doesn't leak
}

func TestOnDropCallbackFiresWithRunningTotal(t *testing.T) {
	d := New(200)
	_, unsubscribe := d.Subscribe(2)
	defer unsubscribe()

	var got []uint64
	d.OnDrop(func(subID int, total uint64) {
		got = append(got, total)
	})

	d.Publish(alertWithID("a0"))
	d.Publish(alertWithID("a1")) // fills the queue, no drop yet
	d.Publish(alertWithID("a2")) // drops a0 -> total 1
	d.Publish(alertWithID("a3")) // drops a1 -> total 2

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected onDrop totals [1 2], got %v", got)
	}
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	d := New(200)
	ch, unsubscribe := d.Subscribe(4)
	unsubscribe()

	d.Publish(alertWithID("a0"))

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
