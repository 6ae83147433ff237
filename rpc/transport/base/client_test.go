package base

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWire(t *testing.T) (*wire, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})
	return &wire{conn: local, requests: xsync.NewMapOf[uint64, chan responseResult]()}, remote
}

// A broken wire that was already replaced must not fail requests written to the new one
func TestBrokenWireOnlyFailsItsOwnRequests(t *testing.T) {
	oldWire, _ := newTestWire(t)
	newWire, _ := newTestWire(t)
	c := &clientConnection{endpoint: "test", parent: &clientTransport{}, wire: newWire}

	oldCh := make(chan responseResult, 1)
	newCh := make(chan responseResult, 1)
	oldWire.requests.Store(1, oldCh)
	newWire.requests.Store(2, newCh)

	c.broken(oldWire, errors.New("connection reset"))

	select {
	case res := <-oldCh:
		assert.Error(t, res.err)
	default:
		t.Fatal("request on the broken wire was not failed")
	}

	select {
	case res := <-newCh:
		t.Fatalf("request on the new wire was failed: %v", res.err)
	default:
	}
	assert.Same(t, newWire, c.wire)
}

func TestBrokenCurrentWireIsForgotten(t *testing.T) {
	w, _ := newTestWire(t)
	c := &clientConnection{endpoint: "test", parent: &clientTransport{}, wire: w}

	ch := make(chan responseResult, 1)
	w.requests.Store(1, ch)
	c.broken(w, errors.New("eof"))

	assert.Nil(t, c.wire)
	res := <-ch
	assert.Error(t, res.err)
}

func TestReadResponsesRoutesByWire(t *testing.T) {
	w, remote := newTestWire(t)
	c := &clientConnection{endpoint: "test", parent: &clientTransport{}, wire: w}

	ch := make(chan responseResult, 1)
	w.requests.Store(42, ch)
	go c.readResponses(w)

	require.NoError(t, writeFrame(remote, 100, 42, []byte("OK")))

	select {
	case res := <-ch:
		require.NoError(t, res.err)
		assert.Equal(t, []byte("OK"), res.data)
	case <-time.After(time.Second):
		t.Fatal("no response delivered")
	}

	_ = remote.Close()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.wire == nil
	}, time.Second, 10*time.Millisecond)
}
