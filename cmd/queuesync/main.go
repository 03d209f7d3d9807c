package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sliink/queuesync/internal/api"
	"github.com/sliink/queuesync/internal/core"
	"github.com/sliink/queuesync/internal/duckdb"
	"github.com/sliink/queuesync/internal/duckdb/migrate"
	"github.com/sliink/queuesync/internal/plugin"
	"github.com/sliink/queuesync/internal/plugin/outputs"
	"github.com/sliink/queuesync/internal/plugin/standard"
	"github.com/sliink/queuesync/internal/producer"
	"github.com/sliink/queuesync/internal/queue"
	"github.com/sliink/queuesync/internal/sqltable"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "queuesync",
		Short:         "queuesync - upsert a product batch into a table for every queue message",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before running; missing files are ignored")

	rootCmd.AddCommand(
		newRunCmd(),
		newProduceCmd(),
		newEnqueueCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		apiAddr    string
		apiEnabled bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume the configured queues and upsert produced batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(configFile)
			if err != nil {
				return err
			}

			if !c.Start() {
				c.Stop()
				return errors.New("failed to start core system")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "queuesync is running. Press Ctrl+C to stop.")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			if apiEnabled {
				if apiAddr == "" {
					apiAddr = c.GetConfigManager().GetString("api.address")
				}
				server := api.NewAPI(c, apiAddr)

				g.Go(func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", apiAddr)
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("api server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Stop(shutdownCtx)
				})
			} else {
				g.Go(func() error {
					<-ctx.Done()
					return nil
				})
			}

			err = g.Wait()

			fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
			if !c.Stop() {
				return errors.New("failed to stop core system cleanly")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file (yaml, json or toml)")
	cmd.Flags().StringVar(&apiAddr, "api-addr", "", "API listen address (default api.address)")
	cmd.Flags().BoolVar(&apiEnabled, "api", true, "Enable the API server")
	return cmd
}

// buildCore loads configuration, registers the configured plugins and wires
// the pipelines. Without a plugins section a memory queue feeds the product
// producer and the default table.
func buildCore(configFile string) (*core.Core, error) {
	c := core.NewCore()
	configManager := c.GetConfigManager()

	if configFile != "" {
		if err := configManager.LoadConfig(configFile); err != nil {
			return nil, err
		}
	}

	if !c.Initialize() {
		return nil, errors.New("failed to initialize core system")
	}

	pluginConfig := cast.ToStringMap(configManager.GetConfig("plugins", nil))
	useDefaults := len(pluginConfig) == 0
	if useDefaults {
		pluginConfig = standard.DefaultPlugins()
	}

	plugins, err := plugin.CreatePlugins(standard.NewFactory(configManager), pluginConfig)
	if err != nil {
		return nil, err
	}
	for _, p := range plugins {
		if err := c.RegisterPlugin(p); err != nil {
			return nil, err
		}
	}

	if useDefaults && configManager.GetConfig("pipelines", nil) == nil {
		for key, ids := range standard.DefaultPipelines() {
			if err := configManager.SetConfig("pipelines."+strings.ToLower(key), ids); err != nil {
				return nil, err
			}
		}
	}
	if err := c.ConfigurePipelines(); err != nil {
		return nil, err
	}

	return c, nil
}

func newProduceCmd() *cobra.Command {
	var (
		count   int
		payload string
		table   string
		driver  string
		dsn     string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Produce one batch and upsert it, as a single trigger would",
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := producer.New(nil).Produce(payload, count)
			if err != nil {
				return err
			}

			if dryRun {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(products)
			}

			name, err := sqltable.ParseName(table)
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = os.Getenv(outputs.DefaultConnectionSetting)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			writer, err := outputs.OpenWriter(ctx, driver, dsn)
			if err != nil {
				return err
			}
			defer writer.Close()

			if err := writer.EnsureTable(ctx, name); err != nil {
				return err
			}
			n, err := writer.Upsert(ctx, name, products)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "upserted %d rows into %s\n", n, name)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", producer.DefaultBatchSize, "Number of products to produce")
	cmd.Flags().StringVar(&payload, "payload", "", "Trigger payload")
	cmd.Flags().StringVar(&table, "table", sqltable.DefaultTable, "Destination table")
	cmd.Flags().StringVar(&driver, "driver", outputs.DriverDuckDB, "Table driver (duckdb or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Connection string (default $"+outputs.DefaultConnectionSetting+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the batch as JSON instead of writing it")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var (
		brokers []string
		topic   string
	)

	cmd := &cobra.Command{
		Use:   "enqueue <message>...",
		Short: "Publish messages to the Kafka trigger topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			publisher, err := queue.NewPublisher(brokers, topic)
			if err != nil {
				return err
			}
			defer publisher.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := publisher.Publish(ctx, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d messages to %s\n", len(args), publisher.Topic())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", queue.DefaultTopic, "Kafka topic")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded DuckDB migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := duckdb.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			current, pending, err := migrate.NewRunner(store.DB()).Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%d pending)\n", current, pending)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "queuesync.duckdb", "DuckDB database file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "queuesync %s\n", version)
		},
	}
}
