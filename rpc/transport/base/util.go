package base

import (
	"errors"
	"io"
	"net"

	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/serializer"
	"google.golang.org/grpc"
)

// finish reads and drops all remaining messages of a client stream and returns
// the final outcome of the call. A regular end of the stream returns nil.
func finish(cs grpc.ClientStream) error {
	for {
		err := cs.RecvMsg(&serializer.Discard{})
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// upgradingListener applies the connector specific socket options to every accepted connection
type upgradingListener struct {
	net.Listener
	connector IServerConnector
	config    common.ServerConfig
}

func (l *upgradingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if err := l.connector.UpgradeConnection(conn, l.config); err != nil {
		// keep the untuned connection
		Logger.Warningf("Failed to upgrade %s connection from %s: %v", l.connector.GetName(), conn.RemoteAddr(), err)
	}
	return conn, nil
}
