package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Shashin/common/environment"
	"github.com/bdobrica/Shashin/common/version"
	"github.com/bdobrica/Shashin/internal/shashin/app"
	"github.com/bdobrica/Shashin/internal/shashin/matrix"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Matrix bot",
	Long: `Run the Matrix bot. Configuration comes from the environment:

  MATRIX_HOMESERVER, MATRIX_USER_ID, MATRIX_ACCESS_TOKEN   (required)
  MATRIX_ROOMS               comma-separated rooms to join and serve
  MATRIX_AUTO_JOIN           accept room invites (default true)
  MATRIX_ALLOWED_SENDERS     comma-separated user IDs allowed to use the bot
  MATRIX_AUDIT_ROOM          room receiving operator notices
  DATABASE_PATH              SQLite database (default ./shashin.db)
  HTTP_ADDR                  health and metrics listener, empty to disable
  SHASHIN_SESSION_TTL        idle session lifetime (default 24h, 0 keeps forever)
  SHASHIN_SWEEP_INTERVAL     how often idle sessions are evicted (default 1m)
  SHASHIN_REPORT_RATE_LIMIT  reports per sender per minute (default 60)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadServeConfig()
		if err != nil {
			return err
		}

		slog.Info("starting Shashin", "version", version.Version, "commit", version.GitCommit)
		shashin, err := app.New(config)
		if err != nil {
			return fmt.Errorf("failed to initialize Shashin: %w", err)
		}
		defer shashin.Stop()

		return shashin.Run()
	},
}

// loadServeConfig loads configuration from environment variables
func loadServeConfig() (*app.Config, error) {
	var (
		cfg matrix.Config
		err error
	)
	if cfg.Homeserver, err = environment.RequiredString("MATRIX_HOMESERVER"); err != nil {
		return nil, err
	}
	if cfg.UserID, err = environment.RequiredString("MATRIX_USER_ID"); err != nil {
		return nil, err
	}
	if cfg.AccessToken, err = environment.RequiredString("MATRIX_ACCESS_TOKEN"); err != nil {
		return nil, err
	}
	cfg.Rooms = environment.StringSliceOr("MATRIX_ROOMS", nil)
	cfg.AutoJoin = environment.StringOr("MATRIX_AUTO_JOIN", "true") == "true"

	engine := engineConfig()
	engine.SessionTTL = environment.DurationOr("SHASHIN_SESSION_TTL", 24*time.Hour)

	return &app.Config{
		DatabasePath:    environment.StringOr("DATABASE_PATH", "./shashin.db"),
		Matrix:          cfg,
		Engine:          engine,
		AllowedSenders:  environment.StringSliceOr("MATRIX_ALLOWED_SENDERS", nil),
		HTTPAddr:        environment.StringOr("HTTP_ADDR", ""),
		AuditRoomID:     environment.StringOr("MATRIX_AUDIT_ROOM", ""),
		SweepInterval:   environment.DurationOr("SHASHIN_SWEEP_INTERVAL", time.Minute),
		ReportRateLimit: environment.IntOr("SHASHIN_REPORT_RATE_LIMIT", 0),
	}, nil
}
