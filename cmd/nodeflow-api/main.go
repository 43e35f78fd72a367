package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/analysis"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/auth"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/config"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/database"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/logging"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nodeflow-api",
		Short: "NodeFlow qualitative coding service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the environment is read")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	flags.String("allowed-origins", defaults.GetString("cors.allowed_origins"), "Comma separated CORS origins")
	flags.String("signing-secret", "", "Bearer token signing secret; empty disables authentication")
	flags.String("token-issuer", defaults.GetString("auth.issuer"), "Bearer token issuer")
	flags.Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	flags.Int("analysis-max-attempts", defaults.GetInt("analysis.max_attempts"), "Attempts before a superseded analysis is reported stale")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.issuer", "token-issuer")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "analysis.max_attempts", "analysis-max-attempts")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		return err
	}

	return nil
}

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var subject string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a bearer token for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if !appConfig.AuthEnabled() {
				return errors.New("auth.signing_secret is not configured")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      appConfig.AuthTokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %ds\n", expiresIn)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	_ = issueCmd.MarkFlagRequired("subject")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	handles, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer handles.Close()

	feed := server.NewChangeFeed()
	codingService, err := coding.NewService(coding.ServiceConfig{
		Database:   handles.Gorm,
		Reader:     handles.Reader,
		Clock:      time.Now,
		IDProvider: coding.NewUUIDProvider(),
		Logger:     logger,
		Notifier:   feed,
	})
	if err != nil {
		return err
	}

	runner, err := analysis.NewRunner(analysis.RunnerConfig{
		Source:      codingService,
		MaxAttempts: appConfig.AnalysisMaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		CodingService:  codingService,
		Analysis:       runner,
		Feed:           feed,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
	}
	if appConfig.AuthEnabled() {
		issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(appConfig.AuthSigningSecret),
			Issuer:        appConfig.AuthIssuer,
			TokenTTL:      appConfig.AuthTokenTTL,
		})
		if err != nil {
			return err
		}
		deps.Tokens = issuer
	} else {
		logger.Warn("auth.signing_secret is empty; API is unauthenticated")
	}

	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	// Streams hold their request open; cancelling the base context ends them on shutdown.
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		cancelStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
