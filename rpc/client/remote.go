package client

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// unboundedTimeout is used for negative timeouts
const unboundedTimeout = time.Duration(math.MaxInt32) * time.Second

// registered is a handle tracked by its RemoteDBM
type registered interface {
	// detach clears the back-reference to the RemoteDBM
	detach()
}

// RemoteDBM is a session with a remote DBM server.
//
// Connect, Disconnect and SetDBMIndex take the lock exclusively. Every other
// operation, including all operations of the handles created by the session,
// holds it shared for the whole call. Point operations may be used from many
// goroutines at once.
type RemoteDBM struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport

	mu       sync.RWMutex
	channel  transport.IClientChannel // nil while disconnected
	address  string
	timeout  time.Duration
	dbmIndex int32
	handles  []registered
}

// NewRemoteDBM creates a disconnected session. The socket settings of the
// config are applied by the transport on Connect.
func NewRemoteDBM(config common.ClientConfig, t transport.IRPCClientTransport) *RemoteDBM {
	return &RemoteDBM{
		config:    config,
		transport: t,
		timeout:   durationOf(config.TimeoutSecond),
		dbmIndex:  config.DBMIndex,
	}
}

// Dial creates a session and connects it to the endpoint of the config
func Dial(config common.ClientConfig, t transport.IRPCClientTransport) (*RemoteDBM, error) {
	d := NewRemoteDBM(config, t)
	if err := d.Connect(config.Transport.Endpoint, config.TimeoutSecond); err != nil {
		return nil, err
	}
	return d, nil
}

// durationOf converts a timeout in seconds. Negative values mean (almost) unbounded.
func durationOf(seconds float64) time.Duration {
	if seconds < 0 {
		return unboundedTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}

func errNotConnected() error {
	return status.NewError(status.CodePrecondition, "not connected database")
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Connect opens a channel to the server and waits until it is ready.
// The timeout in seconds is used for the connection attempt and for every
// later call; a negative timeout means (almost) unbounded.
func (d *RemoteDBM) Connect(address string, timeout float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel != nil {
		return status.NewError(status.CodePrecondition, "connected database")
	}

	t := durationOf(timeout)
	ctx, cancel := context.WithTimeout(context.Background(), t)
	defer cancel()

	channel, err := d.transport.Dial(ctx, address, d.config)
	if err != nil {
		Logger.Debugf("connecting to %s failed: %v", address, err)
		networkErrors.Inc()
		return status.NewError(status.CodeNetwork, "connection failed")
	}

	d.channel = channel
	d.address = address
	d.timeout = t
	Logger.Debugf("connected to %s via %s", address, d.transport.GetName())
	return nil
}

// Disconnect releases the channel. Live handles are not closed, their next
// operation fails with a precondition error.
func (d *RemoteDBM) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel == nil {
		return errNotConnected()
	}
	d.closeChannel()
	return nil
}

// SetDBMIndex selects the database used by subsequent operations
func (d *RemoteDBM) SetDBMIndex(index int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel == nil {
		return errNotConnected()
	}
	d.dbmIndex = index
	return nil
}

// Close tears the session down. The back-reference of every live handle is
// cleared; the handles themselves stay valid objects and must still be closed
// by their owners. Close is idempotent.
func (d *RemoteDBM) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.handles {
		h.detach()
	}
	d.handles = nil

	if d.channel != nil {
		d.closeChannel()
	}
	return nil
}

// closeChannel releases the channel (caller holds the exclusive lock)
func (d *RemoteDBM) closeChannel() {
	if err := d.channel.Close(); err != nil {
		Logger.Debugf("closing the channel to %s: %v", d.address, err)
	}
	d.channel = nil
	Logger.Debugf("disconnected from %s", d.address)
}

// --------------------------------------------------------------------------
// Handle Registry
// --------------------------------------------------------------------------

func (d *RemoteDBM) register(h registered) {
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
	liveHandles.Add(1)
}

// deregister removes a handle, the order of the others is not kept
func (d *RemoteDBM) deregister(h registered) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, other := range d.handles {
		if other == h {
			last := len(d.handles) - 1
			d.handles[i] = d.handles[last]
			d.handles[last] = nil
			d.handles = d.handles[:last]
			return
		}
	}
}

// numHandles returns the number of registered handles
func (d *RemoteDBM) numHandles() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handles)
}

// --------------------------------------------------------------------------
// Unary Calls
// --------------------------------------------------------------------------

// acquire takes the shared lock and checks the session is connected.
// On success the caller must call d.mu.RUnlock.
func (d *RemoteDBM) acquire() error {
	d.mu.RLock()
	if d.channel == nil {
		d.mu.RUnlock()
		return errNotConnected()
	}
	return nil
}

// invoke performs one unary call with a fresh deadline (caller holds the shared lock).
// Only the transport outcome is checked, the embedded status is left to the caller.
func (d *RemoteDBM) invoke(method string, req, resp any) error {
	countCall(method)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.channel.Invoke(ctx, method, req, resp); err != nil {
		networkErrors.Inc()
		return status.FromTransport(err)
	}
	return nil
}

// unary is the common path of all unary operations: check the session and
// invoke the method with the request built for the selected database.
// The embedded status of resp is left to the caller.
func (d *RemoteDBM) unary(method string, build func(dbmIndex int32) any, resp any) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.mu.RUnlock()

	return d.invoke(method, build(d.dbmIndex), resp)
}
