package kv

import (
	"github.com/ValentinKolb/rkv/cmd/util"
	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/spf13/cobra"
)

var (
	access *conn.Access

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value store operations",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	util.SetupClientFlags(KeyValueCommands)

	KeyValueCommands.AddCommand(doCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(ttlCmd)
	KeyValueCommands.AddCommand(expireCmd)
	KeyValueCommands.AddCommand(hsetCmd)
	KeyValueCommands.AddCommand(hgetallCmd)
	KeyValueCommands.AddCommand(lpushCmd)
	KeyValueCommands.AddCommand(lrangeCmd)
	KeyValueCommands.AddCommand(saddCmd)
	KeyValueCommands.AddCommand(smembersCmd)
	KeyValueCommands.AddCommand(zaddCmd)
	KeyValueCommands.AddCommand(zrangeCmd)
	KeyValueCommands.AddCommand(txCmd)
	KeyValueCommands.AddCommand(pipeCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient applies the client flags and creates the access on the selected target
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.SetupClient(cmd); err != nil {
		return err
	}

	var err error
	access, err = util.NewAccess()
	return err
}
