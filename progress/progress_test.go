package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFanout_Delivery(t *testing.T) {
	f := NewFanout()
	a := f.Subscribe(4)
	b := f.Subscribe(4)

	f.Notify("waiting for process exit")
	f.Notify("creating backup")

	for _, ch := range []<-chan string{a, b} {
		if got := <-ch; got != "waiting for process exit" {
			t.Errorf("first message = %q", got)
		}
		if got := <-ch; got != "creating backup" {
			t.Errorf("second message = %q", got)
		}
	}
}

func TestFanout_NeverBlocks(t *testing.T) {
	f := NewFanout()
	f.Subscribe(1) // nobody ever reads this

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			f.Notify(fmt.Sprintf("status %d", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked on a saturated observer")
	}

	if f.Drops() == 0 {
		t.Error("expected drops with a saturated observer")
	}
}

func TestFanout_NoObservers(t *testing.T) {
	f := NewFanout()
	f.Notify("nobody is listening") // must not panic or block
}

func TestFanout_CloseReleasesSubscribers(t *testing.T) {
	f := NewFanout()
	ch := f.Subscribe(4)

	f.Notify("restarting application")
	f.Close()

	// The buffered message is still readable, then the channel reports
	// closed so a draining goroutine can exit its range loop.
	if got := <-ch; got != "restarting application" {
		t.Errorf("buffered message = %q", got)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
}

// A fanout feeding a broadcaster through a drained subscription is how the
// run command wires --progress-addr; statuses must traverse both hops.
func TestFanout_FeedsNotifier(t *testing.T) {
	f := NewFanout()
	updates := f.Subscribe(64)

	received := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		for status := range updates {
			received <- status
		}
		close(done)
	}()

	f.Notify("backing up")
	f.Notify("installing")

	if got := <-received; got != "backing up" {
		t.Errorf("first status = %q", got)
	}
	if got := <-received; got != "installing" {
		t.Errorf("second status = %q", got)
	}

	f.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drain goroutine did not exit after Close")
	}
}

func TestSocketBroadcaster(t *testing.T) {
	b := NewSocketBroadcaster()
	if err := b.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Close()

	url := fmt.Sprintf("ws://%s/progress", b.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscriber registers asynchronously with the HTTP handler; retry
	// until the broadcast reaches it.
	received := make(chan string, 1)
	go func() {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- string(msg)
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		b.Notify("applying update")
		select {
		case got := <-received:
			if got != "applying update" {
				t.Errorf("received %q", got)
			}
			return
		case <-deadline:
			t.Fatal("subscriber never received the status")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestSocketBroadcaster_NoSubscribers(t *testing.T) {
	b := NewSocketBroadcaster()
	if err := b.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Close()

	b.Notify("into the void") // must not panic
}
