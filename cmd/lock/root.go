package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/rkv/cmd/util"
	"github.com/ValentinKolb/rkv/lib/lockmgr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	lockMgr lockmgr.ILockManager

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Long:  "Acquire a lock. With --wait the command retries until the lock is free or the wait time is over. On success the owner id needed for release is printed.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and the owner ID returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	util.SetupClientFlags(LockCommands)

	acquireCmd.Flags().Duration("ttl", 30*time.Second, "Lock expiration (0 for no expiration)")
	acquireCmd.Flags().Duration("wait", 0, "How long to wait for the lock if it is held (0 fails immediately)")
}

// setupLockClient initializes the lock manager on the selected target
func setupLockClient(cmd *cobra.Command, _ []string) error {
	if err := util.SetupClient(cmd); err != nil {
		return err
	}

	access, err := util.NewAccess()
	if err != nil {
		return err
	}
	lockMgr = lockmgr.NewLockManager(access)
	return nil
}

// runAcquire handles the acquire lock command
func runAcquire(cmd *cobra.Command, args []string) error {
	key := args[0]
	ttl, _ := cmd.Flags().GetDuration("ttl")
	wait, _ := cmd.Flags().GetDuration("wait")

	ctx, cancel := context.WithTimeout(cmd.Context(), wait+time.Duration(viper.GetInt("timeout"))*time.Second)
	defer cancel()

	var (
		acquired bool
		ownerID  string
		err      error
	)
	if wait > 0 {
		acquired, ownerID, err = lockMgr.AcquireWait(ctx, key, ttl, wait)
	} else {
		acquired, ownerID, err = lockMgr.AcquireLock(ctx, key, ttl)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	if !acquired {
		fmt.Println("acquired=false")
		return nil
	}
	fmt.Printf("acquired=true, ownerId=%s\n", ownerID)
	return nil
}

// runRelease handles the release lock command
func runRelease(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(viper.GetInt("timeout"))*time.Second)
	defer cancel()

	released, err := lockMgr.ReleaseLock(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
