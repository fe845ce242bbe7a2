package kv

import (
	"github.com/ValentinKolb/rDBM/cmd/util"
	"github.com/ValentinKolb/rDBM/rpc/client"
	"github.com/spf13/cobra"
)

var (
	remoteDBM *client.RemoteDBM

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform database operations on a rDBM server",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(echoCmd)
	KeyValueCommands.AddCommand(inspectCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(removeCmd)
	KeyValueCommands.AddCommand(appendCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(casCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(sizeCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(rebuildCmd)
	KeyValueCommands.AddCommand(syncCmd)
	KeyValueCommands.AddCommand(searchCmd)
	KeyValueCommands.AddCommand(listCmd)
	KeyValueCommands.AddCommand(tailCmd)
	KeyValueCommands.AddCommand(changeMasterCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects the session used by all subcommands
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	dbm, err := util.Connect()
	if err != nil {
		return err
	}
	remoteDBM = dbm
	return nil
}

// closeKVClient releases the session
func closeKVClient(_ *cobra.Command, _ []string) error {
	if remoteDBM == nil {
		return nil
	}
	return remoteDBM.Close()
}
