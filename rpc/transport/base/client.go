package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/ValentinKolb/rkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sethvargo/go-retry"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrTransportClosed is returned by Send after Close was called
var ErrTransportClosed = errors.New("transport closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// wire is one dialed net.Conn together with the requests written to it.
// When it breaks only these requests fail.
type wire struct {
	conn     net.Conn
	requests *xsync.MapOf[uint64, chan responseResult]
}

// clientConnection represents a single connection slot that is re-dialed when it breaks
type clientConnection struct {
	endpoint string
	parent   *clientTransport

	mu     sync.Mutex // protects wire, closed and writes to the wire
	wire   *wire      // nil while broken
	closed bool
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	// Initialize client connections
	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				parent:   t,
			}

			// Establish the initial connection
			clientConn.mu.Lock()
			err := clientConn.dial()
			clientConn.mu.Unlock()
			if err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)
		}
	}

	// Check if we have at least one connection
	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	if t.stopping.Load() {
		return nil, ErrTransportClosed
	}

	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	connection := t.getNextConnection()
	if connection == nil {
		return nil, fmt.Errorf("no active connections available")
	}

	if t.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	respCh := make(chan responseResult, 1)
	w, err := connection.write(ctx, shardId, requestID, req, respCh)
	if err != nil {
		return nil, err
	}
	defer w.requests.Delete(requestID)

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, fmt.Errorf("request %d to %s: %w", requestID, connection.endpoint, ctx.Err())
	}
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, c := range t.connections {
		c.close()
	}

	// Empty the list
	t.connections = nil
}

// write sends one frame, re-dialing a broken connection first, and returns
// the wire respCh is registered on. The frame itself is never written twice.
func (c *clientConnection) write(ctx context.Context, shardID, requestID uint64, data []byte, respCh chan responseResult) (*wire, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrTransportClosed
	}

	if c.wire == nil {
		if err := c.redial(ctx); err != nil {
			return nil, err
		}
	}
	w := c.wire

	if deadline, ok := ctx.Deadline(); ok {
		if err := w.conn.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}

	// the response may arrive before writeFrame returns
	w.requests.Store(requestID, respCh)
	if err := writeFrame(w.conn, shardID, requestID, data); err != nil {
		w.requests.Delete(requestID)
		Logger.Warningf("Failed to write request to %s: %v", c.endpoint, err)
		_ = w.conn.Close()
		c.wire = nil
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return w, nil
}

// redial restores a broken connection with exponential backoff (mu must be held)
func (c *clientConnection) redial(ctx context.Context) error {
	retries := c.parent.config.Transport.RetryCount
	if retries < 0 {
		retries = 0
	}

	b := retry.WithJitterPercent(10, retry.NewExponential(50*time.Millisecond))
	b = retry.WithMaxRetries(uint64(retries), b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.dial(); err != nil {
			Logger.Debugf("Re-dial of %s failed: %v", c.endpoint, err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reconnect to %s: %w", c.endpoint, err)
	}
	Logger.Infof("Reconnected to %s", c.endpoint)
	return nil
}

// dial establishes a connection and starts its response reader (mu must be held)
func (c *clientConnection) dial() error {
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	w := &wire{conn: conn, requests: xsync.NewMapOf[uint64, chan responseResult]()}
	c.wire = w
	go c.readResponses(w)
	return nil
}

// readResponses reads responses in a loop and distributes them to waiting requests.
// It returns when the wire breaks, all requests waiting on it fail.
func (c *clientConnection) readResponses(w *wire) {
	for {
		// Read the response frame
		shardID, requestID, data, err := readFrame(w.conn, nil)
		if err != nil {
			c.broken(w, err)
			return
		}

		// Find the corresponding request channel
		respCh, found := w.requests.Load(requestID)
		if !found {
			// the request timed out or was cancelled
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
			continue
		}

		select {
		case respCh <- responseResult{data, nil}:
		default:
		}
	}
}

// broken forgets w (unless it was replaced already) and fails the requests
// written to it. Requests on a newer wire are not affected.
func (c *clientConnection) broken(w *wire, err error) {
	_ = w.conn.Close()

	c.mu.Lock()
	closed := c.closed
	if c.wire == w {
		c.wire = nil
	}
	c.mu.Unlock()

	if !closed {
		Logger.Warningf("Connection to %s broke: %v", c.endpoint, err)
	}

	w.requests.Range(func(_ uint64, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{nil, fmt.Errorf("error reading response: %v", err)}:
		default:
		}
		return true
	})
}

// close closes the connection for good
func (c *clientConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.wire != nil {
		_ = c.wire.conn.Close()
		c.wire = nil
	}
}
