package main

import (
	"github.com/spf13/cobra"

	"github.com/bdobrica/Shashin/common/environment"
	"github.com/bdobrica/Shashin/common/observability"
	"github.com/bdobrica/Shashin/common/version"
	"github.com/bdobrica/Shashin/internal/shashin/app"
)

var (
	logLevel  string
	logFormat string

	catalogPath    string
	templatePath   string
	defaultCountry string
	statsURL       string
)

var rootCmd = &cobra.Command{
	Use:   "shashin",
	Short: "Shashin - chat-driven partner report generator",
	Long: `Shashin keeps per-user report parameters set through chat commands
and renders partner statistics reports from them, either as a Matrix bot
(serve) or offline from the command line (render).`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.Setup(logLevel, logFormat)
	},
}

func init() {
	rootCmd.SetVersionTemplate("Shashin version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", environment.StringOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", environment.StringOr("LOG_FORMAT", "text"), "Log format: text or json")
	pf.StringVar(&catalogPath, "catalog", environment.StringOr("SHASHIN_CATALOG_PATH", ""), "YAML field catalog replacing the built-in one")
	pf.StringVar(&templatePath, "template", environment.StringOr("SHASHIN_TEMPLATE_PATH", ""), "Report template replacing the built-in one")
	pf.StringVar(&defaultCountry, "default-country", environment.StringOr("SHASHIN_DEFAULT_COUNTRY", ""), "Default value of the country field")
	pf.StringVar(&statsURL, "stats-url", environment.StringOr("SHASHIN_STATS_URL", ""), "Base URL of the trader statistics link")

	rootCmd.AddCommand(serveCmd, renderCmd, versionCmd)
}

// engineConfig collects the flags shared by every subcommand.
func engineConfig() app.EngineConfig {
	return app.EngineConfig{
		CatalogPath:    catalogPath,
		TemplatePath:   templatePath,
		DefaultCountry: defaultCountry,
		StatsURL:       statsURL,
	}
}
