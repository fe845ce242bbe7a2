package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/rDBM/cmd/kv"
	"github.com/ValentinKolb/rDBM/cmd/serve"
	"github.com/ValentinKolb/rDBM/cmd/util"
	"github.com/ValentinKolb/rDBM/rpc/server"
	"github.com/spf13/cobra"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rdbm",
		Short: "remote database manager",
		Long: fmt.Sprintf(`rDBM (v%s)

A database server hosting several ordered key-value databases, written in Go.
Clients use pipelined streams, iterators and the replication log over gRPC.`, server.Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rDBM",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rDBM v%s\n", server.Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "gob", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
