package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/ValentinKolb/rkv/rpc/serializer"
	"github.com/ValentinKolb/rkv/rpc/transport"
	"github.com/ValentinKolb/rkv/rpc/transport/http"
	"github.com/ValentinKolb/rkv/rpc/transport/tcp"
	"github.com/ValentinKolb/rkv/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	Logger = logger.GetLogger("rpc")
)

// Target schemes handled by this package
const (
	SchemeTCP  = "rkv+tcp"
	SchemeUnix = "rkv+unix"
	SchemeHTTP = "rkv+http"
)

func init() {
	store.Register(SchemeTCP, Open)
	store.Register(SchemeUnix, Open)
	store.Register(SchemeHTTP, Open)
}

// --------------------------------------------------------------------------
// Default configuration
// --------------------------------------------------------------------------

var (
	defaultConfigMu sync.RWMutex
	defaultConfig   = common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			ConnectionsPerEndpoint: 1,
			RetryCount:             3,
			TCPConf:                common.TCPConf{TCPNoDelay: true},
		},
	}
)

// SetDefaultConfig sets the client configuration used for targets opened via
// the store registry. Endpoints are always taken from the target, query
// parameters of the target override timeout and connection count.
func SetDefaultConfig(config common.ClientConfig) {
	defaultConfigMu.Lock()
	defer defaultConfigMu.Unlock()
	defaultConfig = config
}

// DefaultConfig returns the current default client configuration
func DefaultConfig() common.ClientConfig {
	defaultConfigMu.RLock()
	defer defaultConfigMu.RUnlock()
	return defaultConfig
}

// --------------------------------------------------------------------------
// Shared transports
// --------------------------------------------------------------------------

// transports holds one connected transport per scheme, endpoint list and
// transport settings. Requests of all shards and databases share it.
var transports = xsync.NewMapOf[string, transport.IRPCClientTransport]()

// connectMu serializes the creation of transports so a target is only dialed once
var connectMu sync.Mutex

// Options are the connection settings encoded in a target:
//
//	rkv+tcp://host:port/<db>?shard=100&serializer=binary&timeout=5&conns=2&endpoints=host2:port
//	rkv+unix://local/<db>?shard=100&socket=/tmp/rkv.sock
//	rkv+http://host:port/<db>?shard=100
type Options struct {
	Scheme     string
	ShardID    uint64
	DB         int
	Serializer string
	Config     common.ClientConfig
}

// ParseOptions parses a rkv target
func ParseOptions(target string) (*Options, error) {
	u, db, err := store.CheckScheme(target, SchemeTCP, SchemeUnix, SchemeHTTP)
	if err != nil {
		return nil, err
	}
	q := u.Query()

	opts := &Options{
		Scheme:     u.Scheme,
		DB:         db,
		Serializer: q.Get("serializer"),
		Config:     DefaultConfig(),
	}

	if s := q.Get("shard"); s != "" {
		if opts.ShardID, err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, store.Errorf(store.RetCInvalidOperation, "invalid shard %q in target %s", s, store.Redact(target))
		}
	}
	if s := q.Get("timeout"); s != "" {
		if opts.Config.TimeoutSecond, err = strconv.Atoi(s); err != nil {
			return nil, store.Errorf(store.RetCInvalidOperation, "invalid timeout %q in target %s", s, store.Redact(target))
		}
	}
	if s := q.Get("conns"); s != "" {
		if opts.Config.Transport.ConnectionsPerEndpoint, err = strconv.Atoi(s); err != nil {
			return nil, store.Errorf(store.RetCInvalidOperation, "invalid conns %q in target %s", s, store.Redact(target))
		}
	}

	endpoints, err := endpointsOf(u)
	if err != nil {
		return nil, err
	}
	opts.Config.Transport.Endpoints = endpoints

	if _, err := serializer.ByName(opts.Serializer); err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	return opts, nil
}

// endpointsOf returns the transport endpoints of a target
func endpointsOf(u *url.URL) ([]string, error) {
	q := u.Query()
	if u.Scheme == SchemeUnix {
		socket := q.Get("socket")
		if socket == "" {
			return nil, store.Errorf(store.RetCInvalidOperation, "target %s: missing socket parameter", u.Redacted())
		}
		return []string{socket}, nil
	}

	endpoints := []string{u.Host}
	if extra := q.Get("endpoints"); extra != "" {
		for _, e := range strings.Split(extra, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
	}
	return endpoints, nil
}

// transportFor returns the shared transport of the options, connecting it on first use
func transportFor(opts *Options) (transport.IRPCClientTransport, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", opts.Scheme, strings.Join(opts.Config.Transport.Endpoints, ","),
		opts.Config.TimeoutSecond, opts.Config.Transport.ConnectionsPerEndpoint)

	if t, ok := transports.Load(key); ok {
		return t, nil
	}

	connectMu.Lock()
	defer connectMu.Unlock()
	if t, ok := transports.Load(key); ok {
		return t, nil
	}

	t, err := NewTransport(opts.Scheme)
	if err != nil {
		return nil, err
	}
	if err := t.Connect(opts.Config); err != nil {
		return nil, err
	}
	transports.Store(key, t)
	Logger.Infof("connected %s transport to %s", opts.Scheme, strings.Join(opts.Config.Transport.Endpoints, ", "))
	return t, nil
}

// NewTransport creates an unconnected client transport for a target scheme
// (or a plain transport name: tcp, unix, http)
func NewTransport(scheme string) (transport.IRPCClientTransport, error) {
	switch strings.TrimPrefix(strings.ToLower(scheme), "rkv+") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport: %s (expected one of: tcp, unix, http)", scheme)
	}
}

// CloseTransports closes all shared transports.
// Connections opened before keep failing with a transport error.
func CloseTransports() error {
	var errs []error
	transports.Range(func(key string, t transport.IRPCClientTransport) bool {
		transports.Delete(key)
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// invoke is the helper used by all requests of a connection.
// It serializes the request, sends it to the shard and checks the response:
// an error response is returned as *store.Error, a response of another type
// than the request is an internal error.
func invoke(ctx context.Context, shardId uint64, req *common.Message, t transport.IRPCClientTransport, s serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := s.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := t.Send(ctx, shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := s.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "invalid response: %v", err)
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCInternalError, "unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}
	return resp, nil
}
