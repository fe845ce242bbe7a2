package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/rDBM/lib/db"
	"github.com/ValentinKolb/rDBM/lib/db/engines/tree"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/lib/store/lstore"
	"github.com/ValentinKolb/rDBM/lib/store/ulog"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// Version is reported by Inspect
const Version = "0.1.0"

// NewRPCServer creates a new DBM server
// It takes a config, the transport to serve on and the transport used to
// reach a master when the server is a replica.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(serializer.NewGOBSerializer()),
//		tcp.NewTCPClientTransport(serializer.NewGOBSerializer()),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	serverTransport transport.IRPCServerTransport,
	replicaTransport transport.IRPCClientTransport,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.NumDBMs <= 0 {
		config.NumDBMs = 1
	}
	if config.UpdateLogCapacity <= 0 {
		config.UpdateLogCapacity = ulog.DefaultCapacity
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	s := &rpcServer{
		config:           config,
		transport:        serverTransport,
		replicaTransport: replicaTransport,
		updateLog:        ulog.NewUpdateLog(config.UpdateLogCapacity),
		metrics:          metrics.NewSet(),
		sessions:         xsync.NewMapOf[uint64, string](),
	}
	s.metrics.NewGauge("rdbm_server_update_log_entries", func() float64 {
		return float64(s.updateLog.Len())
	})
	s.metrics.NewGauge("rdbm_server_sessions", func() float64 {
		return float64(s.sessions.Size())
	})
	return s
}

type rpcServer struct {
	config           common.ServerConfig
	transport        transport.IRPCServerTransport
	replicaTransport transport.IRPCClientTransport

	dbms      []store.IStore
	updateLog *ulog.UpdateLog
	replica   *replica

	// metrics of this server (kept apart from the global set so that
	// several servers can run in one process)
	metrics       *metrics.Set
	metricsServer *http.Server

	// sessions holds the kind of every running streaming call
	sessions  *xsync.MapOf[uint64, string]
	sessionID atomic.Uint64
}

// snapshotPath returns the file the dbm with the given index is persisted to
func (s *rpcServer) snapshotPath(index int) string {
	if s.config.DataDir == "" {
		return ""
	}
	return filepath.Join(s.config.DataDir, fmt.Sprintf("dbm-%d.rdbm", index))
}

func (s *rpcServer) init() error {
	// Init logger
	common.InitLoggers(s.config.LogLevel)

	// Function to create a new database instance
	dbFactory := func() db.KVDB { return tree.NewTreeDB(nil) }

	if s.config.DataDir != "" {
		if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// CREATE DBMS
	s.dbms = make([]store.IStore, s.config.NumDBMs)
	for i := range s.dbms {
		s.dbms[i] = lstore.NewLocalStore(dbFactory, lstore.Options{
			DBMIndex:     int32(i),
			ServerID:     s.config.ServerID,
			UpdateLog:    s.updateLog,
			SnapshotPath: s.snapshotPath(i),
		})
		if err := s.dbms[i].Restore(); err != nil {
			return fmt.Errorf("failed to restore dbm %d: %w", i, err)
		}
	}
	Logger.Infof("created %d databases", len(s.dbms))

	// Configure the transport layer
	s.registerHandlers()

	// Follow the master if configured
	s.replica = newReplica(s, s.replicaTransport)
	if s.config.Master != "" {
		s.replica.changeMaster(s.config.Master, s.config.TimestampSkew)
	}

	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRPCServer)
// --------------------------------------------------------------------------

func (s *rpcServer) Start() error {
	if err := s.init(); err != nil {
		return err
	}
	if err := s.transport.Listen(s.config); err != nil {
		return err
	}
	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}
	Logger.Infof("rDBM server %d ready on %s", s.config.ServerID, s.transport.Addr())
	return nil
}

func (s *rpcServer) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	Logger.Infof("received %s, shutting down", <-sig)
	return s.Stop()
}

func (s *rpcServer) Addr() string {
	return s.transport.Addr()
}

func (s *rpcServer) Stop() error {
	if s.replica != nil {
		s.replica.changeMaster("", 0)
	}
	s.transport.Stop()

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.metricsServer.Shutdown(ctx)
	}

	// Persist all databases
	var errs []error
	for i, dbm := range s.dbms {
		if err := dbm.Synchronize(false, nil); err != nil {
			errs = append(errs, fmt.Errorf("dbm %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// countCall increments the call counter of a method
func (s *rpcServer) countCall(method string) {
	s.metrics.GetOrCreateCounter(`rdbm_server_calls_total{method="` + method + `"}`).Inc()
}

// writeMetrics writes the metrics of the server and the process in the prometheus format
func (s *rpcServer) writeMetrics(w io.Writer) {
	s.metrics.WritePrometheus(w)
	metrics.WritePrometheus(w, true)
}

// serveMetrics exposes the metrics via http in the background
func (s *rpcServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		s.writeMetrics(w)
	})
	s.metricsServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server stopped: %v", err)
		}
	}()
}

// openSession tracks a running streaming call until the returned func is called
func (s *rpcServer) openSession(kind string) (closeSession func()) {
	id := s.sessionID.Add(1)
	s.sessions.Store(id, kind)
	return func() { s.sessions.Delete(id) }
}
