package cmd

import (
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/cmd/db"
	cmdUtils "github.com/stellar/stellar-tenant-control-plane/cmd/utils"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
)

// globalOptions are shared by every subcommand. They're filled before any subcommand runs.
var globalOptions cmdUtils.GlobalOptionsType

func globalConfigOptions(opts *cmdUtils.GlobalOptionsType) config.ConfigOptions {
	return config.ConfigOptions{
		{
			Name:           "log-level",
			Usage:          `Minimum level of the logs. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "PANIC"`,
			OptType:        types.String,
			FlagDefault:    "TRACE",
			ConfigKey:      &opts.LogLevel,
			CustomSetValue: cmdUtils.SetConfigOptionLogLevel,
			Required:       true,
		},
		{
			Name:        "environment",
			Usage:       `Name of the deployment environment, e.g. "development", "staging" or "production"`,
			OptType:     types.String,
			FlagDefault: "development",
			ConfigKey:   &opts.Environment,
			Required:    true,
		},
		{
			Name:      "sentry-dsn",
			Usage:     "Client key of the Sentry project errors are reported to. Only used with the SENTRY crash tracker",
			OptType:   types.String,
			ConfigKey: &opts.SentryDSN,
		},
		{
			Name:        db.DBConfigOptionFlagName,
			Usage:       "Postgres URL of the database holding the tenants registry and the tenant schemas",
			OptType:     types.String,
			FlagDefault: "postgres://localhost:5432/tenant-control-plane?sslmode=disable",
			ConfigKey:   &opts.DatabaseURL,
			Required:    true,
		},
		{
			Name:        "service-name",
			Usage:       "Name this process stamps on the envelopes it publishes and on its metrics",
			OptType:     types.String,
			FlagDefault: "tenant-control-plane",
			ConfigKey:   &opts.ServiceName,
			Required:    true,
		},
	}
}

func rootCmd() *cobra.Command {
	configOpts := globalConfigOptions(&globalOptions)

	cmd := &cobra.Command{
		Use:     "tenant-control-plane",
		Short:   "Tenant Control Plane",
		Long:    "Keeps the registry of tenants, routes every request to the database of its tenant and drives the provisioning of new tenants.",
		Version: globalOptions.Version,
		PersistentPreRun: func(*cobra.Command, []string) {
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Fatalf("setting values of the global config options: %v", err)
			}
			log.Infof("tenant-control-plane version=%s commit=%s", globalOptions.Version, globalOptions.GitCommit)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	if err := configOpts.Init(cmd); err != nil {
		log.Fatalf("initializing the global config options: %v", err)
	}
	// The env file is loaded before cobra parses the flags, it's only declared so cobra accepts it.
	cmd.PersistentFlags().String(cmdUtils.EnvFileFlagName, "", "Env file to load the configuration from. Defaults to $ENV_FILE, then to .env")

	return cmd
}

// SetupCLI builds the root command with every subcommand attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.Version = version
	globalOptions.GitCommit = gitCommit

	root := rootCmd()
	root.AddCommand(
		(&ServeCommand{}).Command(&ServerService{}, &monitor.MonitorService{}),
		(&db.DatabaseCommand{}).Command(&globalOptions),
	)
	return root
}
