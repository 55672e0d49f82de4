package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/packhound/packhound/internal/cli"
	"github.com/packhound/packhound/internal/logging"
	apihttp "github.com/packhound/packhound/pkg/adapters/http"
	"github.com/packhound/packhound/pkg/adapters/memory"
	redisadapter "github.com/packhound/packhound/pkg/adapters/redis"
	"github.com/packhound/packhound/pkg/observability"
	"github.com/packhound/packhound/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	Long: `Starts the asynchronous REST API. Submitted runs are accepted
immediately and executed in the background; clients poll the run resource
for the verdict. Run records live in memory by default, or in Redis when an
address is configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		port, _ := cmd.Flags().GetString("port")

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)

		engine, err := cli.BuildEngine(cfg, logger, metrics.Hooks())
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}

		serverOpts := []apihttp.Option{
			apihttp.WithLogger(logger),
			apihttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		}

		var store ports.RunStore = memory.NewStore()
		if cfg.Redis.Address != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			store = redisadapter.NewFromClient(client)
			serverOpts = append(serverOpts, apihttp.WithLocker(redisadapter.NewLocker(client, "packhound:")))
		}

		handler := apihttp.NewHandler(engine, store, serverOpts...)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Packhound API on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Packhound API stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
