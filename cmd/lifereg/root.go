package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifereg/internal/address"
	"lifereg/internal/config"
	"lifereg/internal/logging"
	"lifereg/internal/registry"
	"lifereg/internal/store"
	"lifereg/internal/store/memory"
	"lifereg/internal/store/sqlite"
)

// app carries state shared by every subcommand for one invocation.
type app struct {
	configPath string
	storePath  string
	verbose    bool
	as         string

	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
	svc    *registry.Service
}

// execute runs one lifereg invocation and releases the store afterwards,
// whether or not the command failed.
func execute(args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer func() { _ = a.close() }()
	return root.Execute()
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "lifereg",
		Short: "Game of Life pattern registry",
		Long: `lifereg stores 64x64 Game of Life patterns under addresses derived from
their owner and id, keeps a bounded feed of published patterns, and lets
users star the patterns they like.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.open() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "lifereg.yaml", "config file")
	pf.StringVar(&a.storePath, "store", "", "sqlite database path (overrides config)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.as, "as", "anonymous", "name of the acting user")

	root.AddCommand(
		a.initCmd(),
		a.authorityCmd(),
		a.createCmd(),
		a.listCmd(),
		a.showCmd(),
		a.starCmd(true),
		a.starCmd(false),
		a.advanceCmd(),
		a.galleryCmd(),
		a.simulateCmd(),
		a.scanCmd(),
		a.verifyCmd(),
	)
	return root, a
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storePath != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = a.storePath
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		a.store = memory.New()
	default:
		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		a.store = st
	}
	a.logger.Debug("store opened",
		zap.String("driver", cfg.Store.Driver),
		zap.String("path", cfg.Store.Path))

	a.svc = registry.New(a.store, registry.Options{
		Capacity:        cfg.Registry.Capacity,
		MaxAdvanceSteps: cfg.Registry.MaxAdvanceSteps,
		Logger:          a.logger,
	})
	return nil
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
		a.logger = nil
	}
	return err
}

// caller is the identity of the --as user.
func (a *app) caller() address.Identity {
	return identity(a.as)
}

// identity accepts a 64-digit hex identity or hashes a user name.
func identity(s string) address.Identity {
	if id, err := address.ParseIdentity(s); err == nil {
		return id
	}
	return address.IdentityFromName(s)
}

// patternArgs resolves the OWNER ID positional pair.
func (a *app) patternArgs(args []string) (address.Address, error) {
	return a.svc.PatternAddress(identity(args[0]), args[1])
}
