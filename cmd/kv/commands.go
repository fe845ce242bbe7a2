package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ValentinKolb/rDBM/cmd/util"
	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/rpc/client"
	"github.com/spf13/cobra"
)

var (
	echoCmd = &cobra.Command{
		Use:   "echo [message]",
		Short: "Sends a message to the server and prints the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			echo, err := remoteDBM.Echo(args[0])
			if err != nil {
				return err
			}
			fmt.Println(echo)
			return nil
		},
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Prints the properties of the database (--dbm -1 for the whole server)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := remoteDBM.Inspect()
			if err != nil {
				return err
			}
			for _, p := range props {
				fmt.Printf("%-20s %s\n", p.Name, p.Value)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := remoteDBM.Get([]byte(args[0]))
			if errors.Is(err, status.ErrNotFound) {
				fmt.Println("key not found")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(string(value))
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetBool("keep")
			if err := remoteDBM.Set([]byte(args[0]), []byte(args[1]), !keep); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]...",
		Short: "Removes one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([][]byte, len(args))
			for i, arg := range args {
				keys[i] = []byte(arg)
			}
			if err := remoteDBM.RemoveMulti(keys); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	appendCmd = &cobra.Command{
		Use:   "append [key] [value]",
		Short: "Appends a value to the record of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, _ := cmd.Flags().GetString("delim")
			if err := remoteDBM.Append([]byte(args[0]), []byte(args[1]), []byte(delim)); err != nil {
				return err
			}
			fmt.Println("appended successfully")
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [increment]",
		Short: "Adds the increment to the numeric record of a key and prints the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			increment := int64(1)
			if len(args) == 2 {
				var err error
				if increment, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("increment must be a number: %w", err)
				}
			}
			initial, _ := cmd.Flags().GetInt64("initial")
			current, err := remoteDBM.Increment([]byte(args[0]), increment, initial)
			if err != nil {
				return err
			}
			fmt.Println(current)
			return nil
		},
	}
	casCmd = &cobra.Command{
		Use:   "cas [key] [expected] [desired]",
		Short: "Replaces the value of a key if it has the expected value",
		Long:  "Replaces the value of a key if it has the expected value. Use --expect-absent to require a missing record and --remove to remove the record instead of setting a value.",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			expectAbsent, _ := cmd.Flags().GetBool("expect-absent")
			remove, _ := cmd.Flags().GetBool("remove")

			rest := args[1:]
			var expected, desired []byte
			if !expectAbsent {
				if len(rest) == 0 {
					return fmt.Errorf("expected value is missing")
				}
				expected, rest = []byte(rest[0]), rest[1:]
			}
			if !remove {
				if len(rest) == 0 {
					return fmt.Errorf("desired value is missing")
				}
				desired, rest = []byte(rest[0]), rest[1:]
			}
			if len(rest) > 0 {
				return fmt.Errorf("too many arguments")
			}

			err := remoteDBM.CompareExchange([]byte(args[0]), expected, desired)
			if errors.Is(err, status.ErrInfeasible) {
				fmt.Println("value did not match")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("exchanged successfully")
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Prints the number of records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := remoteDBM.Count()
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the size of the database in bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := remoteDBM.GetFileSize()
			if err != nil {
				return err
			}
			fmt.Println(size)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := remoteDBM.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	rebuildCmd = &cobra.Command{
		Use:   "rebuild [name=value]...",
		Short: "Rebuilds the database (only if needed with --if-needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			if ifNeeded, _ := cmd.Flags().GetBool("if-needed"); ifNeeded {
				tobe, err := remoteDBM.ShouldBeRebuilt()
				if err != nil {
					return err
				}
				if !tobe {
					fmt.Println("rebuild not needed")
					return nil
				}
			}
			if err := remoteDBM.Rebuild(params); err != nil {
				return err
			}
			fmt.Println("rebuilt successfully")
			return nil
		},
	}
	syncCmd = &cobra.Command{
		Use:   "sync [name=value]...",
		Short: "Writes the database to the data directory of the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			hard, _ := cmd.Flags().GetBool("hard")
			if err := remoteDBM.Synchronize(hard, params); err != nil {
				return err
			}
			fmt.Println("synchronized successfully")
			return nil
		},
	}
	searchCmd = &cobra.Command{
		Use:   "search [mode] [pattern]",
		Short: "Prints the keys matching a pattern (modes: contain, containcase, begin, end, regex, upper, upperinc, lower, lowerinc)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			keys, err := remoteDBM.SearchModal(args[0], []byte(args[1]), limit)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(string(key))
			}
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Prints the records in key order",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	tailCmd = &cobra.Command{
		Use:   "tail",
		Short: "Prints the update log of the server until interrupted",
		Args:  cobra.NoArgs,
		RunE:  tail,
	}
	changeMasterCmd = &cobra.Command{
		Use:   "change-master [address]",
		Short: "Makes the server replicate from a master (no address stops replication)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			master := ""
			if len(args) == 1 {
				master = args[0]
			}
			skew, _ := cmd.Flags().GetFloat64("timestamp-skew")
			if err := remoteDBM.ChangeMaster(master, skew); err != nil {
				return err
			}
			fmt.Println("master changed successfully")
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Bool("keep", false, util.WrapString("Fail if the key already exists instead of overwriting it"))
	appendCmd.Flags().String("delim", "", util.WrapString("Delimiter inserted between the old and the new value"))
	incrCmd.Flags().Int64("initial", 0, util.WrapString("Value assumed for a missing record"))
	casCmd.Flags().Bool("expect-absent", false, util.WrapString("Require the record to be missing (no expected argument)"))
	casCmd.Flags().Bool("remove", false, util.WrapString("Remove the record on a match (no desired argument)"))
	rebuildCmd.Flags().Bool("if-needed", false, util.WrapString("Only rebuild if the server reports it as useful"))
	syncCmd.Flags().Bool("hard", false, util.WrapString("Sync the written snapshot to the device"))
	searchCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of keys to print (0 = unlimited)"))
	listCmd.Flags().String("from", "", util.WrapString("Start at the first key greater than or equal to this key"))
	listCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of records to print (0 = unlimited)"))
	listCmd.Flags().Bool("reverse", false, util.WrapString("Walk in descending key order"))
	listCmd.Flags().Bool("keys-only", false, util.WrapString("Print only the keys"))
	tailCmd.Flags().Int64("since", 0, util.WrapString("Timestamp (unix milliseconds) of the first update to print"))
	tailCmd.Flags().Int32("server-id", 0, util.WrapString("Skip updates originating from this server id (0 = skip none)"))
	tailCmd.Flags().Float64("wait", 1, util.WrapString("Seconds the server waits for an update before sending a heartbeat"))
	changeMasterCmd.Flags().Float64("timestamp-skew", 0, util.WrapString("Seconds to go back in the update log of the new master"))
}

// parseParams parses name=value arguments
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid parameter %s (expected name=value)", arg)
		}
		params[name] = value
	}
	return params, nil
}

// list walks the database with an iterator
func list(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	limit, _ := cmd.Flags().GetInt("limit")
	reverse, _ := cmd.Flags().GetBool("reverse")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	it := remoteDBM.MakeIterator()
	defer it.Close()

	var err error
	switch {
	case from != "" && reverse:
		err = it.JumpLower([]byte(from), true)
	case from != "":
		err = it.Jump([]byte(from))
	case reverse:
		err = it.Last()
	default:
		err = it.First()
	}
	if err != nil {
		return err
	}

	step := it.Next
	if reverse {
		step = it.Previous
	}

	for n := 0; limit <= 0 || n < limit; n++ {
		key, value, err := it.Get(true, !keysOnly)
		if errors.Is(err, status.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if keysOnly {
			fmt.Println(string(key))
		} else {
			fmt.Printf("%s\t%s\n", key, value)
		}
		if err := step(); err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

// tail prints the update log until the command is interrupted
func tail(cmd *cobra.Command, _ []string) error {
	since, _ := cmd.Flags().GetInt64("since")
	serverID, _ := cmd.Flags().GetInt32("server-id")
	wait, _ := cmd.Flags().GetFloat64("wait")

	rep := remoteDBM.MakeReplicator()
	defer rep.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer context.AfterFunc(ctx, rep.Cancel)()

	if err := rep.Start(since, serverID, wait); err != nil {
		return err
	}
	fmt.Printf("tailing update log of server %d\n", rep.GetMasterServerID())

	var entry client.ReplicateLog
	for {
		timestamp, err := rep.Read(&entry)
		if errors.Is(err, status.ErrInfeasible) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Printf("%d\t%s\tserver=%d\tdbm=%d\t%s\t%s\n",
			timestamp, entry.Op, entry.ServerID, entry.DBMIndex, entry.Key, entry.Value)
	}
}
