package main

import (
	"fmt"
	"os"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/util"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           util.Name,
		Short:         "versiond - a Versia federation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = util.GetVersion()
	cmd.SetVersionTemplate(util.Name + " version {{.Version}}\n")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newKeygenCmd(),
		newUserCmd(),
	)
	return cmd
}

// loadConf reads the configuration and applies its log level.
func loadConf() (*util.AppConfig, error) {
	conf, err := util.ReadConf()
	if err != nil {
		return nil, err
	}
	if err := util.SetLogLevel(conf.Conf.LogLevel); err != nil {
		return nil, fmt.Errorf("logLevel %q: %w", conf.Conf.LogLevel, err)
	}
	return conf, nil
}

func openDB(conf *util.AppConfig) (*db.DB, error) {
	path := conf.DatabasePath()
	store, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return store, nil
}
