package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"sketch_room/internal/api"
	"sketch_room/internal/logger"
	"sketch_room/internal/metrics"
	"sketch_room/internal/middleware"
	"sketch_room/internal/repository"
	"sketch_room/internal/service"
	"sketch_room/internal/utils"
	"sketch_room/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sketch-room",
		Short:         "Collaborative drawing session server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "directory containing config.yaml")
	return cmd
}

func serve(cfg *config.Config) error {
	log := logger.SetupDefault(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	// 初始化儲存
	repos, closeRepos, err := repository.Open(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeRepos()

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	services := service.NewServices(repos, cfg, tokens, recorder, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	api.SetupRoutes(r, services, api.Options{
		Verifier:       tokens,
		Gatherer:       reg,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "address", cfg.Server.Address, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}

func tokenCmd() *cobra.Command {
	var (
		configDir string
		userID    string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed token for a user ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := utils.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "directory containing config.yaml")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	cmd.MarkFlagRequired("user")
	return cmd
}
