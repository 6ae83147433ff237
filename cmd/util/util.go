package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store/redisstore"
	"github.com/ValentinKolb/rkv/rpc/client"
	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// registers the mem:// backend
	_ "github.com/ValentinKolb/rkv/lib/store/memstore"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (RKV_<FLAG>)
	EnvPrefix = "rkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// HashID converts a human readable node name (e.g. 'node-1') to a numeric raft replica id
func HashID(name string) uint64 {
	return xxhash.Sum64String(strings.TrimSpace(name))
}

// InitConfig loads .env files and binds environment variables with the RKV_ prefix
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Client flags
// --------------------------------------------------------------------------

// SetupClientFlags adds the flags shared by all client commands
func SetupClientFlags(cmd *cobra.Command) {
	key := "target"
	cmd.PersistentFlags().String(key, "rkv+tcp://localhost:8080?shard=100", WrapString("The store to connect to (e.g. rkv+tcp://host:port?shard=100, rkv+unix://local?socket=/tmp/rkv.sock&shard=100, redis://localhost:6379, mem://local)"))

	key = "db"
	cmd.PersistentFlags().Int(key, 0, WrapString("The logical database to use"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a request"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint (rkv targets only)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How often a broken connection is re-dialed before a request fails (rkv targets only)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (rkv+tcp only)"))

	key = "atomic-fallback"
	cmd.PersistentFlags().String(key, "warn", WrapString("What happens when an atomic block resolves to a connection that can not run it (strict, warn, permissive)"))

	key = "batch-fallback"
	cmd.PersistentFlags().String(key, "permissive", WrapString("What happens when a batch block resolves to a connection that can not run it (strict, warn, permissive)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The level at which logs will be output (debug, info, warn, error)"))

	key = "trace"
	cmd.PersistentFlags().Bool(key, false, WrapString("Log every command and scope sent to the store"))
}

// SetupClient applies the client flags: logging, transport defaults, fallback modes and middleware
func SetupClient(cmd *cobra.Command) error {
	if err := BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	client.SetDefaultConfig(GetClientConfig())

	atomicMode, err := conn.ParseMode(viper.GetString("atomic-fallback"))
	if err != nil {
		return err
	}
	batchMode, err := conn.ParseMode(viper.GetString("batch-fallback"))
	if err != nil {
		return err
	}
	conn.Configure(conn.Config{AtomicFallback: atomicMode, BatchFallback: batchMode})

	if viper.GetBool("trace") {
		conn.Use(conn.LoggingMiddleware())
	}
	return nil
}

// GetClientConfig reads the transport defaults for rkv targets from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			TCPConf: common.TCPConf{
				TCPNoDelay: viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetTarget returns the normalized target selected by the flags
func GetTarget() (conn.Target, error) {
	target, err := conn.NewTarget(viper.GetString("target"), viper.GetInt("db"))
	if err != nil {
		return conn.Target{}, fmt.Errorf("invalid target: %w", err)
	}
	return target, nil
}

// NewAccess creates the access used by client commands: the default chain
// (reentrant atomic, cached ad hoc, create) on the selected target
func NewAccess() (*conn.Access, error) {
	target, err := GetTarget()
	if err != nil {
		return nil, err
	}
	return conn.NewAccess(conn.DefaultChain(nil, nil), target), nil
}

// Close releases the shared client resources
func Close() {
	_ = client.CloseTransports()
	_ = redisstore.CloseClients()
}
