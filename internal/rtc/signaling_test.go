package rtc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestCloseOnDone_UnblocksReadLoop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	readReturned := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		go closeOnDone(ctx, conn)
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
		// the client never writes, so only the teardown can end this read
		_, _, err = conn.ReadMessage()
		readReturned <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case err := <-readReturned:
		if err == nil {
			t.Fatal("expected the read to fail once the context ended")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after context cancellation")
	}
}
