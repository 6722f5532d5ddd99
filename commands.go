package main

import (
	"fmt"

	"github.com/deemkeen/versiond/federation"
	"github.com/deemkeen/versiond/util"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			// db.Open migrates
			store, err := openDB(conf)
			if err != nil {
				return err
			}
			defer store.Close()
			util.NewLogger("Main").Info("Database migrations complete", "path", conf.DatabasePath())
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the instance key if missing and show its public half",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				public, private, err := federation.GenerateKeyPair()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\nprivate: %s\n", public, private)
				return nil
			}

			conf, err := loadConf()
			if err != nil {
				return err
			}
			path := conf.InstanceKeyFile()
			key, err := federation.LoadInstanceKey(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", path, key.Public)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print a fresh key pair without storing it")
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var displayName string
	var locked bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a local account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			store, err := openDB(conf)
			if err != nil {
				return err
			}
			defer store.Close()

			actor, err := federation.CreateLocalActor(cmd.Context(), store, federation.NewURIs(conf.Conf.Domain), args[0], displayName, locked)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", actor.URI)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().BoolVar(&locked, "locked", false, "require approval of follow requests")
	return cmd
}
