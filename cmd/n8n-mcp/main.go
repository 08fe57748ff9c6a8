package main

import (
	"context"
	"fmt"
	"os"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/flowgate/n8n-mcp/internal/metrics"
	"github.com/flowgate/n8n-mcp/internal/n8n"
	"github.com/flowgate/n8n-mcp/internal/nodedocs"
	"github.com/flowgate/n8n-mcp/internal/server"
	"github.com/flowgate/n8n-mcp/internal/session"
	"github.com/flowgate/n8n-mcp/internal/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "n8n-mcp",
	Short: "MCP server for n8n workflow management",
	Long: `n8n-mcp exposes n8n node documentation and workflow management as MCP
tools over streamable HTTP, SSE or stdio. In multi-tenant mode the target
n8n instance is selected per request through the X-N8n-Url and X-N8n-Key
headers.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger()}
		}),
		session.Module,
		nodedocs.Module,
		n8n.Module,
		metrics.Module,
		tools.Module,
		server.Module,
		fx.Invoke(startServer),
	)

	app.Run()
}

// startServer ties the server's run loop to the fx lifecycle.
func startServer(lc fx.Lifecycle, srv *server.Server, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(ctx); err != nil {
					logger.Error("server exited", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
