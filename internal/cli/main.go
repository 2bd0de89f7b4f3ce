package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/schemarun/schemarun"
)

const (
	defaultTimeFormat = "20060102150405"
	defaultTimezone   = "UTC"
	createUsage       = `create [--ext E] [--dir D] [--seq] [--digits N] [--format] [--tz] NAME
	   Create a set of timestamped up/down migrations titled NAME, in directory D with extension E.
	   Use --seq option to generate sequential up/down migrations with N digits.
	   Use --format option to specify a Go time format string. Note: migrations with the same time cause "duplicate migration version" error.
           Use --tz option to specify the timezone that will be used when generating non-sequential migrations (defaults: UTC).
`
	gotoUsage      = `goto V       Migrate to version V`
	upUsage        = `up [N]       Apply all or N up migrations`
	downUsage      = `down [N] [--all]    Apply all or N down migrations
	Use --all to apply all down migrations`
	dropUsage      = `drop [-f]    Drop everything inside database
	Use -f to bypass confirmation`
	forceUsage     = `force V      Set version V but don't run migration (ignores dirty state)`
	installToUsage = `install-to DIR      Copy the running binary to the specified directory`
)

func handleSubCmdHelp(help bool, usage string, flagSet *flag.FlagSet) {
	if help {
		fmt.Fprintln(os.Stderr, usage)
		flagSet.PrintDefaults()
		os.Exit(0)
	}
}

func newFlagSetWithHelp(name string) (*flag.FlagSet, *bool) {
	flagSet := flag.NewFlagSet(name, flag.ExitOnError)
	helpPtr := flagSet.Bool("help", false, "Print help information")
	return flagSet, helpPtr
}

var log = newLog()

func printUsageAndExit() {
	flag.Usage()

	// If a command is not found we exit with a status 2 to match the behavior
	// of flag.Parse() with flag.ExitOnError when parsing an invalid flag.
	os.Exit(2)
}

func dbMakeConnectionString(driver, user, password, address, name, ssl string) string {
	return fmt.Sprintf("%s://%s:%s@%s/%s?sslmode=%s",
		driver, url.QueryEscape(user), url.QueryEscape(password), address, name, ssl,
	)
}

// Main is the entry point for the schemarunner binary.
func Main(appVersion string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	help := viper.GetBool("help")
	showVersion := viper.GetBool("version")
	verbose := viper.GetBool("verbose")
	lockTimeout := viper.GetInt("lock-timeout")
	path := viper.GetString("path")
	sourcePtr := viper.GetString("source")

	databasePtr := viper.GetString("database.dsn")
	if databasePtr == "" {
		databasePtr = dbMakeConnectionString(
			viper.GetString("database.driver"), viper.GetString("database.user"),
			viper.GetString("database.password"), viper.GetString("database.address"),
			viper.GetString("database.name"), viper.GetString("database.ssl"),
		)
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr,
			`Usage: schemarunner OPTIONS COMMAND [arg...]
       schemarunner [ --version | --help ]

Options:
  --source          Location of the migrations (driver://url)
  --path            Shorthand for --source=file://path
  --lock-timeout N  Allow N seconds to acquire database lock (default 15)
  --verbose         Print verbose logging
  --version         Print version
  --help            Print usage

  --config.source        directory of the configuration file (default "/cli/config")
  --config.file          configuration file name (without extension)
  --database.dsn         database connection string (driver://url); when empty, it is built
                         from the database.* options below. There is no --database option.
  --database.driver      database driver (default postgres)
  --database.address     address of the database (default "0.0.0.0:5432")
  --database.name        name of the database
  --database.user        database username (default "postgres")
  --database.password    database password (default "postgres")
  --database.ssl         database ssl mode (default "disable")

Commands:
  %s
  %s
  %s
  %s
  %s
  %s
  %s
  version      Print current migration version
`, createUsage, gotoUsage, upUsage, downUsage, dropUsage, forceUsage, installToUsage)
	}

	log.setVerbose(verbose)

	if showVersion {
		fmt.Fprintln(os.Stderr, "schemarunner version", appVersion)
		os.Exit(0)
	}

	if help {
		flag.Usage()
		os.Exit(0)
	}

	if sourcePtr == "" && path != "" {
		sourcePtr = fmt.Sprintf("file://%v", path)
	}

	startTime := time.Now()

	if len(flag.Args()) < 1 {
		printUsageAndExit()
	}
	args := flag.Args()[1:]

	if flag.Arg(0) == "create" {
		runCreate(startTime, args)
		return
	}
	if flag.Arg(0) == "install-to" {
		runInstallTo(args)
		return
	}

	runner, runnerErr := schemarun.New(ctx, sourcePtr, databasePtr,
		schemarun.WithLogger(log), schemarun.WithLockTimeout(time.Duration(lockTimeout)*time.Second))
	defer func() {
		if runnerErr == nil {
			if err := runner.Close(ctx); err != nil {
				log.Println(err)
			}
		}
	}()

	switch flag.Arg(0) {
	case "goto":
		gotoSet, helpPtr := newFlagSetWithHelp("goto")
		if err := gotoSet.Parse(args); err != nil {
			log.fatalErr(err)
		}
		handleSubCmdHelp(*helpPtr, gotoUsage, gotoSet)
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		if gotoSet.NArg() == 0 {
			log.fatal("error: please specify version argument V")
		}
		v, err := strconv.ParseUint(gotoSet.Arg(0), 10, 64)
		if err != nil {
			log.fatal("error: can't read version argument V")
		}
		if err := gotoCmd(ctx, runner, v); err != nil {
			log.fatalErr(err)
		}
		if log.verbose {
			log.Println("Finished after", time.Since(startTime))
		}

	case "up":
		upSet, helpPtr := newFlagSetWithHelp("up")
		if err := upSet.Parse(args); err != nil {
			log.fatalErr(err)
		}
		handleSubCmdHelp(*helpPtr, upUsage, upSet)
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		limit := -1
		if upSet.NArg() > 0 {
			n, err := strconv.ParseUint(upSet.Arg(0), 10, 64)
			if err != nil {
				log.fatal("error: can't read limit argument N")
			}
			limit = int(n)
		}
		if err := upCmd(ctx, runner, limit); err != nil {
			log.fatalErr(err)
		}
		if log.verbose {
			log.Println("Finished after", time.Since(startTime))
		}

	case "down":
		downFlagSet, helpPtr := newFlagSetWithHelp("down")
		applyAll := downFlagSet.Bool("all", false, "Apply all down migrations")
		if err := downFlagSet.Parse(args); err != nil {
			log.fatalErr(err)
		}
		handleSubCmdHelp(*helpPtr, downUsage, downFlagSet)
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		num, needsConfirm, err := numDownMigrationsFromArgs(*applyAll, downFlagSet.Args())
		if err != nil {
			log.fatalErr(err)
		}
		if needsConfirm && !confirm("Are you sure you want to apply all down migrations? [y/N]", "Applying all down migrations", "Not applying all down migrations") {
			os.Exit(1)
		}
		if err := downCmd(ctx, runner, num); err != nil {
			log.fatalErr(err)
		}
		if log.verbose {
			log.Println("Finished after", time.Since(startTime))
		}

	case "drop":
		dropFlagSet, helpPtr := newFlagSetWithHelp("drop")
		forceDrop := dropFlagSet.BoolP("force", "f", false, "Force the drop command by bypassing the confirmation prompt")
		if err := dropFlagSet.Parse(args); err != nil {
			log.fatalErr(err)
		}
		handleSubCmdHelp(*helpPtr, dropUsage, dropFlagSet)
		if !*forceDrop && !confirm("Are you sure you want to drop the entire database schema? [y/N]", "Dropping the entire database schema", "Aborted dropping the entire database schema") {
			os.Exit(1)
		}
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		if err := dropCmd(ctx, runner, *forceDrop); err != nil {
			log.fatalErr(err)
		}
		if log.verbose {
			log.Println("Finished after", time.Since(startTime))
		}

	case "force":
		forceSet, helpPtr := newFlagSetWithHelp("force")
		if err := forceSet.Parse(args); err != nil {
			log.fatalErr(err)
		}
		handleSubCmdHelp(*helpPtr, forceUsage, forceSet)
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		if forceSet.NArg() == 0 {
			log.fatal("error: please specify version argument V")
		}
		v, err := strconv.ParseInt(forceSet.Arg(0), 10, 64)
		if err != nil {
			log.fatal("error: can't read version argument V")
		}
		if v < -1 {
			log.fatal("error: argument V must be >= -1")
		}
		if err := forceCmd(ctx, runner, int(v)); err != nil {
			log.fatalErr(err)
		}
		if log.verbose {
			log.Println("Finished after", time.Since(startTime))
		}

	case "version":
		if runnerErr != nil {
			log.fatalErr(runnerErr)
		}
		if err := versionCmd(ctx, runner); err != nil {
			log.fatalErr(err)
		}

	default:
		printUsageAndExit()
	}
}

func confirm(prompt, onYes, onNo string) bool {
	log.Println(prompt)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	if response == "y" {
		log.Println(onYes)
		return true
	}
	log.Println(onNo)
	return false
}

func runCreate(startTime time.Time, args []string) {
	seq := false
	seqDigits := 6

	createFlagSet, helpPtr := newFlagSetWithHelp("create")
	extPtr := createFlagSet.String("ext", "", "File extension")
	dirPtr := createFlagSet.String("dir", "", "Directory to place file in (default: current working directory)")
	formatPtr := createFlagSet.String("format", defaultTimeFormat, `The Go time format string to use. If the string "unix" or "unixNano" is specified, then the seconds or nanoseconds since January 1, 1970 UTC respectively will be used. Caution, due to the behavior of time.Time.Format(), invalid format strings will not error`)
	timezoneName := createFlagSet.String("tz", defaultTimezone, `The timezone that will be used for generating timestamps (default: utc)`)
	createFlagSet.BoolVar(&seq, "seq", seq, "Use sequential numbers instead of timestamps (default: false)")
	createFlagSet.IntVar(&seqDigits, "digits", seqDigits, "The number of digits to use in sequences (default: 6)")

	if err := createFlagSet.Parse(args); err != nil {
		log.fatalErr(err)
	}
	handleSubCmdHelp(*helpPtr, createUsage, createFlagSet)

	if createFlagSet.NArg() == 0 {
		log.fatal("error: please specify name")
	}
	name := createFlagSet.Arg(0)

	if *extPtr == "" {
		log.fatal("error: --ext flag must be specified")
	}

	timezone, err := time.LoadLocation(*timezoneName)
	if err != nil {
		log.fatal(err)
	}

	if err := createCmd(*dirPtr, startTime.In(timezone), *formatPtr, name, *extPtr, seq, seqDigits, true); err != nil {
		log.fatalErr(err)
	}
}

func runInstallTo(args []string) {
	installFlagSet, helpPtr := newFlagSetWithHelp("install-to")
	if err := installFlagSet.Parse(args); err != nil {
		log.fatalErr(err)
	}
	handleSubCmdHelp(*helpPtr, installToUsage, installFlagSet)

	if installFlagSet.NArg() == 0 {
		log.fatal("error: please specify destination directory")
	}
	destDir := installFlagSet.Arg(0)
	if info, err := os.Stat(destDir); err != nil || !info.IsDir() {
		log.fatal("error: destination directory does not exist")
	}

	if err := installToCmd(destDir); err != nil {
		log.fatalErr(err)
	}
	log.Println("Binary successfully installed")
}
