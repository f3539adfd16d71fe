package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	sendChan chan []byte
	closed   bool
}

func (m *mockClient) getSendChannel() chan []byte { return m.sendChan }
func (m *mockClient) close()                      { m.closed = true }

func TestHub_PublishDeliversToRegisteredClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	client := &mockClient{sendChan: make(chan []byte, 4)}
	h.Register(client)

	h.Publish(Event{Type: "window_processed", Count: 3})

	select {
	case msg := <-client.sendChan:
		assert.Contains(t, string(msg), "window_processed")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_UnregisterClosesClientChannel(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	client := &mockClient{sendChan: make(chan []byte, 4)}
	h.Register(client)
	h.Unregister(client)

	time.Sleep(10 * time.Millisecond)

	_, ok := <-client.sendChan
	assert.False(t, ok, "channel should be closed after unregister")
}

func TestHub_PublishWithNoClientsDoesNotBlock(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	done := make(chan struct{})
	go func() {
		h.Publish(Event{Type: "stopped"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no clients registered")
	}
}

func TestHub_StopClosesAllClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := &mockClient{sendChan: make(chan []byte, 4)}
	h.Register(client)
	time.Sleep(10 * time.Millisecond)

	h.Stop()
	time.Sleep(10 * time.Millisecond)

	require.True(t, client.closed)
}
