// Package hostbridge feeds the core's Event Queue (spec.md §4.7) from
// external sources outside the language runtime itself — the role
// spec.md §6 assigns to "display, timers" in the abstract and that the
// teacher fills concretely with its WebSocket listeners
// (internal/network/websocket.go, internal/vm/network_websocket.go).
// This package plays the same role for a single bridge: a websocket
// connection whose incoming text frames are converted to language
// String values and pushed onto a VM's event queue.
package hostbridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"protoscript/internal/psstring"
	"protoscript/internal/psvm"
)

// Bridge owns one client websocket connection and relays its text/binary
// frames into a VM's event queue. It never touches the VM's GC or
// environment directly — only Queue.Push, which is itself safe to call
// from any point since the queue never allocates beyond its fixed ring.
type Bridge struct {
	conn *websocket.Conn
	vm   *psvm.VM

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Dial connects to a websocket URL and starts relaying its frames into
// vm's event queue as language Strings, mirroring the teacher's
// NetworkModule.WebSocketConnect + readMessages goroutine pair.
func Dial(vm *psvm.VM, url string) (*Bridge, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	b := &Bridge{conn: conn, vm: vm, done: make(chan struct{})}
	go b.relay()
	return b, nil
}

// relay reads frames until the connection errors or Close is called,
// pushing each text/binary payload onto the VM's event queue as a
// String value. Frames that arrive faster than the queue is drained
// are handled by the ring's own drop-oldest-on-full policy
// (psevent.Queue.Push), the same "channel full, drop oldest" choice the
// teacher's readMessages makes for its internal buffered channel.
func (b *Bridge) relay() {
	defer close(b.done)
	for {
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		str, err := psstring.New(b.vm.GC(), data)
		if err != nil {
			continue // ill-formed UTF-8 frame: drop rather than raise inside a background goroutine
		}
		b.vm.Events().Push(psstring.Ref(str))
	}
}

// Send writes a text message to the remote peer.
func (b *Bridge) Send(message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	return b.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// Close shuts down the connection and waits for the relay goroutine to
// exit.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		// the relay already stopped on a read error; release the connection
		b.mu.Unlock()
		<-b.done
		return b.conn.Close()
	}
	b.closed = true
	b.mu.Unlock()

	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := b.conn.Close()
	<-b.done
	return err
}

var errClosed = bridgeClosedError{}

type bridgeClosedError struct{}

func (bridgeClosedError) Error() string { return "hostbridge: connection closed" }
