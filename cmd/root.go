package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/rkv/cmd/kv"
	"github.com/ValentinKolb/rkv/cmd/lock"
	"github.com/ValentinKolb/rkv/cmd/serve"
	"github.com/ValentinKolb/rkv/cmd/util"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rkv",
		Short: "redis-like store access layer",
		Long: fmt.Sprintf(`rkv (v%s)

A redis-like key-value store and client access layer written in Go.
Commands run ad hoc, in atomic units or in batches on memory, raft
replicated or redis backed stores.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rkv v%s\n", Version)
			fmt.Printf("store backends: %s\n", strings.Join(store.Schemes(), ", "))
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	defer util.Close()
	if err := RootCmd.Execute(); err != nil {
		util.Close()
		os.Exit(1)
	}
}
