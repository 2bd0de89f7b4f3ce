package main

import (
	"github.com/spf13/pflag"

	"github.com/schemarun/schemarun/internal/cli"
)

const (
	// configuration defaults support local development (i.e. "go run ...")
	defaultDatabaseDSN      = ""
	defaultDatabaseDriver   = "postgres"
	defaultDatabaseAddress  = "0.0.0.0:5432"
	defaultDatabaseName     = ""
	defaultDatabaseUser     = "postgres"
	defaultDatabasePassword = "postgres"
	defaultDatabaseSSL      = "disable"
	defaultConfigDirectory  = "/cli/config"
)

var (
	flagHelp           = pflag.Bool("help", cli.DefaultFlags.Help, "Print usage")
	flagVersion        = pflag.Bool("version", cli.DefaultFlags.Version, "Print version")
	flagLoggingVerbose = pflag.Bool("verbose", cli.DefaultFlags.Verbose, "Print verbose logging")
	flaglockTimeout    = pflag.Uint("lock-timeout", cli.DefaultFlags.LockTimeout, "Allow N seconds to acquire database lock")

	flagDatabaseDSN      = pflag.String("database.dsn", defaultDatabaseDSN, "database connection string")
	flagDatabaseDriver   = pflag.String("database.driver", defaultDatabaseDriver, "database driver")
	flagDatabaseAddress  = pflag.String("database.address", defaultDatabaseAddress, "address of the database")
	flagDatabaseName     = pflag.String("database.name", defaultDatabaseName, "name of the database")
	flagDatabaseUser     = pflag.String("database.user", defaultDatabaseUser, "database username")
	flagDatabasePassword = pflag.String("database.password", defaultDatabasePassword, "database password")
	flagDatabaseSSL      = pflag.String("database.ssl", defaultDatabaseSSL, "database ssl mode")

	flagSource = pflag.String("source", cli.DefaultFlags.Source, "Location of the migrations (driver://url)")
	flagPath   = pflag.String("path", cli.DefaultFlags.Path, "Shorthand for --source=file://path")

	flagConfigDirectory = pflag.String("config.source", defaultConfigDirectory, "directory of the configuration file")
	flagConfigFile      = pflag.String("config.file", "", "configuration file name without extension")
)
