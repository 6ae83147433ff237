package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/lib/store/dstore"
	"github.com/ValentinKolb/rkv/lib/store/memstore"
	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/ValentinKolb/rkv/rpc/serializer"
	"github.com/ValentinKolb/rkv/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server.
// Connections are created per logical database on first use and shared by
// all requests, the store connections are safe for concurrent use.
type serverShard struct {
	shardID uint64
	kind    common.ServerShardType
	open    func(db int) store.IConn
	conns   *xsync.MapOf[int, store.IConn]
	close   func() error
}

// conn returns the shared connection of a logical database
func (s *serverShard) conn(db int) store.IConn {
	c, _ := s.conns.LoadOrCompute(db, func() store.IConn {
		return s.open(db)
	})
	return c
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewConnServerAdapter(),
		shards:     xsync.NewMapOf[uint64, *serverShard](),
	}
}

// RPCServer serves the shards of one node over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	shards     *xsync.MapOf[uint64, *serverShard]

	nodeHost      *dragonboat.NodeHost
	metricsServer *http.Server
	closeOnce     sync.Once
}

// Serve starts the RPC server
// This function will also initialize the shards and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	s.serveMetrics()
	return s.transport.Listen(s.config)
}

// Close stops the transport, the metrics endpoint and all shards
func (s *RPCServer) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		errs = append(errs, s.transport.Close())
		if s.metricsServer != nil {
			errs = append(errs, s.metricsServer.Close())
		}
		s.shards.Range(func(id uint64, shard *serverShard) bool {
			if err := shard.close(); err != nil {
				errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
			}
			return true
		})
		if s.nodeHost != nil {
			s.nodeHost.Close()
		}
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	// Create the Dragonboat NodeHost
	if s.config.HasRaftShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the raft proposals
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of memory and or raft shards.
		Every shard is one memstore engine with its own logical databases,
		clients select it by the shard id of their target.
	*/

	for _, shardConfig := range s.config.Shards {
		shardID := shardConfig.ShardID
		shard := &serverShard{
			shardID: shardID,
			kind:    shardConfig.Type,
			conns:   xsync.NewMapOf[int, store.IConn](),
		}

		switch shardConfig.Type {
		case common.ShardTypeMemory:
			engine := memstore.NewEngine(nil)
			shard.open = func(db int) store.IConn {
				return memstore.NewConn(engine, db, fmt.Sprintf("%s://shard-%d/%d", memstore.Scheme, shardID, db))
			}
			shard.close = engine.Close

		case common.ShardTypeRaft:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create raft shard")
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMachineFactory(), s.config.ToDragonboatConfig(shardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardID, err)
			}
			nh := s.nodeHost
			shard.open = func(db int) store.IConn {
				return dstore.NewConn(nh, shardID, db, fmt.Sprintf("raft://shard-%d/%d", shardID, db), timeout)
			}
			shard.close = func() error { return nil } // the node host stops the replica

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		s.shards.Store(shardID, shard)
		Logger.Infof("created %s shard %d", shardConfig.Type, shardID)
	}

	Logger.Infof("rkv setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// handle is the transport handler: decode, execute on the shard, encode
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var resp *common.Message

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	if !ok {
		resp = common.NewErrorResponse(store.Errorf(store.RetCInvalidOperation, "shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponse(store.Errorf(store.RetCInvalidOperation, "failed to deserialize request: %s", err))
	} else {
		ctx := context.Background()
		if s.config.TimeoutSecond > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecond)*time.Second)
			defer cancel()
		}

		// Let the adapter handle the request
		resp = s.adapter.Handle(ctx, &msg, shard.conn(int(msg.DB)))
	}

	observe(msg.MsgType, resp, time.Since(start))

	// Return result
	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Errorf("failed to serialize response: %w", err)))
	}
	return val
}

// observe records request counters and latencies per message type
func observe(t common.MessageType, resp *common.Message, d time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_rpc_requests_total{type=%q}`, t)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`rkv_rpc_request_duration_seconds{type=%q}`, t)).Update(d.Seconds())
	if resp.MsgType == common.MsgTError {
		metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_rpc_request_errors_total{type=%q}`, t)).Inc()
	}
}

// serveMetrics exposes the VictoriaMetrics registry on MetricsEndpoint
func (s *RPCServer) serveMetrics() {
	if s.config.MetricsEndpoint == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metricsServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := s.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}
