package serve

import (
	"fmt"
	"strconv"

	cmdUtil "github.com/ValentinKolb/rDBM/cmd/util"
	"github.com/ValentinKolb/rDBM/lib/db/util"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the rDBM server",
		Long:    `Start the rDBM server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RDBM_<flag> (e.g. RDBM_NUM_DBMS=4)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:1978", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:1978, /tmp/rdbm.sock, ...)"))

	key = "num-dbms"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of databases served, addressed by the index 0..num-dbms-1"))

	key = "server-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Identifier of this server in the update log. Numbers are used as they are, names are hashed (e.g. 'node-1'). Defaults to a hash of the endpoint"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory for the snapshots written by synchronize. Empty disables persistence"))

	key = "update-log-capacity"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of update log entries kept for replication (0 = default)"))

	key = "master"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the master to replicate from. Empty makes this server a master"))

	key = "timestamp-skew"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Seconds subtracted from the last applied timestamp when replication resumes"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 10, cmdUtil.WrapString("Timeout in seconds of the calls the server makes to its master"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to expose the prometheus metrics on (e.g. :9090). Empty disables metrics"))

	key = "socket-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the write buffer of every connection (in KB)"))

	key = "socket-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the read buffer of every connection (in KB)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time (in seconds, only for tcp, negative = system default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.NumDBMs = viper.GetInt("num-dbms")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.UpdateLogCapacity = viper.GetInt("update-log-capacity")
	serveCmdConfig.Master = viper.GetString("master")
	serveCmdConfig.TimestampSkew = viper.GetFloat64("timestamp-skew")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint: viper.GetString("endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}

	if serveCmdConfig.NumDBMs <= 0 {
		return fmt.Errorf("num-dbms must be positive, got %d", serveCmdConfig.NumDBMs)
	}

	serverID, err := parseServerID(viper.GetString("server-id"), serveCmdConfig.Transport.Endpoint)
	if err != nil {
		return err
	}
	serveCmdConfig.ServerID = serverID

	return nil
}

// parseServerID uses numeric ids as they are and hashes names into a positive id
func parseServerID(id, endpoint string) (int32, error) {
	if id == "" {
		id = endpoint
	}
	if n, err := strconv.ParseInt(id, 10, 32); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("server-id must not be negative, got %d", n)
		}
		return int32(n), nil
	}
	// 0 disables the replication filter and is never produced by a hash
	hash := int32(uint64(util.HashString(id, 0)) & 0x7fffffff)
	if hash == 0 {
		hash = 1
	}
	return hash, nil
}

// run starts the rDBM server and blocks until it is stopped
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	// the master is reached with the same transport and serializer
	replicaTransport, err := cmdUtil.GetClientTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		replicaTransport,
	)

	return serv.Serve()
}
