// Command dumpdirctl is a minimal front-end for the dumpdir package: it
// demonstrates creating, inspecting, and deleting a problem directory from
// the command line, and gives the ambient logging/config stack a runtime
// surface to drive.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faultwatch/dumpdir"
	"github.com/faultwatch/dumpdir/internal/config"
	"github.com/faultwatch/dumpdir/internal/logger"
)

var (
	cfgPath string
	debug   bool
	log     logger.Logger
	cfg     *config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dumpdirctl",
		Short:         "Inspect and manage problem directories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if debug {
				loaded.Logging.Debug = true
			}
			cfg = loaded

			if cfg.LockPollInterval > 0 {
				dumpdir.OpenPollInterval = cfg.LockPollInterval
			}

			opts := []logger.Option{logger.WithFormat(cfg.Logging.Format)}
			if cfg.Logging.Debug {
				opts = append(opts, logger.WithDebug())
			}
			log = logger.NewLogger(opts...)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newCreateCmd(), newShowCmd(), newDeleteCmd())
	return root
}

func newCreateCmd() *cobra.Command {
	var uid int
	var mode uint32

	cmd := &cobra.Command{
		Use:   "create PATH",
		Short: "Create a new problem directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// cfg isn't loaded until PersistentPreRunE, well after cobra
			// fixes these flags' construction-time defaults, so the
			// config-driven default is applied here instead, and only
			// when the caller didn't pass the flag explicitly.
			if !cmd.Flags().Changed("uid") {
				uid = cfg.DefaultUID
			}
			if !cmd.Flags().Changed("mode") {
				mode = cfg.DefaultMode
			}

			h, err := dumpdir.Create(args[0], uid, os.FileMode(mode), 0)
			if err != nil {
				log.Errorf("create %s: %v", args[0], err)
				return err
			}
			defer h.Close()

			if err := h.CreateBasicFiles(uid, ""); err != nil {
				log.Errorf("populate %s: %v", args[0], err)
				return err
			}
			log.Infof("created problem directory %s", h.Path())
			return nil
		},
	}

	cmd.Flags().IntVar(&uid, "uid", -1, "owning uid of the crashing process, -1 to skip")
	cmd.Flags().Uint32Var(&mode, "mode", 0o640, "item file mode")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show PATH",
		Short: "Print the items in a problem directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := dumpdir.Open(args[0], dumpdir.FlagOpenReadOnly)
			if err != nil {
				log.Errorf("open %s: %v", args[0], err)
				return err
			}
			defer h.Close()

			for {
				name, ok, err := h.NextItem()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				content, _, err := h.LoadText(name, dumpdir.FlagFailQuietlyOnMissing)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", name, content)
			}
			return nil
		},
	}
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete PATH",
		Short: "Delete a problem directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := dumpdir.Open(args[0], 0)
			if err != nil {
				log.Errorf("open %s: %v", args[0], err)
				return err
			}
			if err := h.Delete(); err != nil {
				log.Errorf("delete %s: %v", args[0], err)
				return err
			}
			log.Infof("deleted %s", args[0])
			return nil
		},
	}
	return cmd
}
