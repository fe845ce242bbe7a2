package unix

import (
	"net"

	"github.com/ValentinKolb/rDBM/rpc/common"
)

// upgradeConnection applies the socket buffer sizes to a Unix connection
func upgradeConnection(conn net.Conn, socketConf common.SocketConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil // Not a Unix connection, nothing to upgrade
	}

	if socketConf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(socketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	if socketConf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(socketConf.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}
