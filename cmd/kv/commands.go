package kv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	doCmd = &cobra.Command{
		Use:   "do [command] [args...]",
		Short: "Sends a raw command (e.g. do HINCRBY h f 2)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], toAny(args[1:])...)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "GET", args[0])
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdArgs := []any{args[0], args[1]}
			if ttl, _ := cmd.Flags().GetDuration("ttl"); ttl > 0 {
				cmdArgs = append(cmdArgs, "PX", ttl.Milliseconds())
			}
			if nx, _ := cmd.Flags().GetBool("nx"); nx {
				cmdArgs = append(cmdArgs, "NX")
			}
			return run(cmd, "SET", cmdArgs...)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "DEL", toAny(args)...)
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increments the integer stored at key (by 1 if no delta is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return run(cmd, "INCRBY", args[0], args[1])
			}
			return run(cmd, "INCR", args[0])
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining time to live of a key in milliseconds (-1 no expiration, -2 missing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "PTTL", args[0])
		},
	}
	expireCmd = &cobra.Command{
		Use:   "expire [key] [duration]",
		Short: "Sets the time to live of a key (e.g. 30s, 5m)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			return run(cmd, "PEXPIRE", args[0], ttl.Milliseconds())
		},
	}
	hsetCmd = &cobra.Command{
		Use:   "hset [key] [field] [value] [field value...]",
		Short: "Sets fields of a hash",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 || len(args)%2 == 0 {
				return fmt.Errorf("expected a key followed by field value pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "HSET", toAny(args)...)
		},
	}
	hgetallCmd = &cobra.Command{
		Use:   "hgetall [key]",
		Short: "Reads all fields of a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "HGETALL", args[0])
		},
	}
	lpushCmd = &cobra.Command{
		Use:   "lpush [key] [value...]",
		Short: "Prepends values to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "LPUSH", toAny(args)...)
		},
	}
	lrangeCmd = &cobra.Command{
		Use:   "lrange [key] [start] [stop]",
		Short: "Reads a range of a list (negative indices count from the end)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "LRANGE", toAny(args)...)
		},
	}
	saddCmd = &cobra.Command{
		Use:   "sadd [key] [member...]",
		Short: "Adds members to a set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "SADD", toAny(args)...)
		},
	}
	smembersCmd = &cobra.Command{
		Use:   "smembers [key]",
		Short: "Reads all members of a set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "SMEMBERS", args[0])
		},
	}
	zaddCmd = &cobra.Command{
		Use:   "zadd [key] [score] [member] [score member...]",
		Short: "Adds members with scores to a sorted set",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 || len(args)%2 == 0 {
				return fmt.Errorf("expected a key followed by score member pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "ZADD", toAny(args)...)
		},
	}
	zrangeCmd = &cobra.Command{
		Use:   "zrange [key] [start] [stop]",
		Short: "Reads a range of a sorted set by ascending score",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdArgs := toAny(args)
			if withScores, _ := cmd.Flags().GetBool("withscores"); withScores {
				cmdArgs = append(cmdArgs, "WITHSCORES")
			}
			return run(cmd, "ZRANGE", cmdArgs...)
		},
	}
	txCmd = &cobra.Command{
		Use:   "tx [command...]",
		Short: "Runs commands as one atomic unit (e.g. tx 'SET a 1' 'INCR a')",
		Long:  "Runs commands as one atomic unit. Each argument is one command, its words are split at whitespace. Either all commands are applied or none (if one of them is invalid).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMulti(cmd, args, access.RunAtomic)
		},
	}
	pipeCmd = &cobra.Command{
		Use:   "pipe [command...]",
		Short: "Sends commands as one batch (e.g. pipe 'INCR a' 'GET b')",
		Long:  "Sends commands as one batch. Each argument is one command, its words are split at whitespace. Commands are not atomic: each one succeeds or fails on its own.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMulti(cmd, args, access.RunBatch)
		},
	}
)

func init() {
	setCmd.Flags().Duration("ttl", 0, "Expire the key after this duration (e.g. 30s)")
	setCmd.Flags().Bool("nx", false, "Only set the key if it does not exist")
	zrangeCmd.Flags().Bool("withscores", false, "Include the scores")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Duration(viper.GetInt("timeout"))*time.Second)
}

// run sends a single command and prints its reply
func run(cmd *cobra.Command, name string, args ...any) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	v, err := access.Do(ctx, name, args...)
	if err != nil {
		return err
	}
	fmt.Println(formatReply(v))
	return nil
}

// runMulti parses one command per line and runs them with exec (RunAtomic or RunBatch)
func runMulti(cmd *cobra.Command, lines []string, exec func(context.Context, conn.Block) (*conn.MultiResult, error)) error {
	commands, err := parseCommands(lines)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := exec(ctx, func(ctx context.Context, c store.Commander) error {
		for _, command := range commands {
			if _, err := c.Do(ctx, command.Name, toAny(command.Args)...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, reply := range res.Results() {
		if reply.Err != nil {
			fmt.Printf("%d) (error) %v\n", i+1, reply.Err)
			continue
		}
		fmt.Printf("%d) %s\n", i+1, formatReply(reply.Value))
	}
	return nil
}

// parseCommands splits every line at whitespace into a command
func parseCommands(lines []string) ([]store.Command, error) {
	commands := make([]store.Command, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		commands = append(commands, store.NewCommand(words[0], toAny(words[1:])...))
	}
	return commands, nil
}

func toAny(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// formatReply renders a reply the way redis-cli does
func formatReply(v any) string {
	switch v := v.(type) {
	case nil:
		return "(nil)"
	case int64:
		return fmt.Sprintf("(integer) %d", v)
	case string:
		return fmt.Sprintf("%q", v)
	case []any:
		if len(v) == 0 {
			return "(empty array)"
		}
		var sb strings.Builder
		for i, item := range v {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("%d) %s", i+1, formatReply(item)))
		}
		return sb.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
