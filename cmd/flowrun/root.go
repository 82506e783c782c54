package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/flowrun/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "flowrun",
	Short: "flowrun executes conversational flows",
	Long: `flowrun runs conversational flows (start, message, condition, api_call and end nodes)
as interactive terminal chats, over HTTP, or as tools for MCP clients.

Settings are read from flags, FLOWRUN_* environment variables and .flowrun.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		v, err := config.NewViper(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sourcePath picks the flow source: the positional argument, then the flows setting.
func sourcePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Flows
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./.flowrun.yaml or $HOME/.flowrun.yaml)")
	pf.String("flows", ".", "flow file, directory of flow files, or markdown flow repository")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.Int("step-limit", 0, "nodes a run may process before it is stopped (0 disables the cap)")
	pf.Int("max-input", 0, "maximum input size in bytes (0 uses the default)")
	pf.String("store", "memory", "session store: memory, file or redis")
	pf.String("store-path", ".flowrun/sessions", "directory of the file session store")
	pf.String("redis-addr", "localhost:6379", "redis address")
	pf.String("redis-password", "", "redis password")
	pf.Int("redis-db", 0, "redis database")
	pf.String("redis-prefix", "flowrun:session:", "prefix of redis keys")
	pf.Duration("redis-ttl", 24*time.Hour, "expiry of stored sessions")
	pf.Duration("message-delay", 800*time.Millisecond, "simulated delay of message nodes")
	pf.Duration("api-delay", 1500*time.Millisecond, "simulated delay of api_call nodes")
	pf.String("archive-url", "", "bucket URL receiving completed transcripts (file:///dir, mem://)")
	pf.StringSlice("pii-pattern", nil, "regular expression masked in stored user messages (repeatable)")
}
