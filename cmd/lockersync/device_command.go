package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockersync/internal/identity"
	"lockersync/internal/logging"
)

func newDeviceCommand(ctx *commandContext) *cobra.Command {
	var register bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show the uploader device identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, source, err := identity.Resolve(cfg)
			if err != nil {
				return err
			}

			registered := false
			if register {
				logger, err := ctx.logger(cmd, cfg)
				if err != nil {
					return err
				}
				logger = logging.NewComponentLogger(logger, "cli.device")
				if err := authenticate(cmd.Context(), ctx.newTransport(cfg, logger), id); err != nil {
					return err
				}
				registered = true
				logger.Info("uploader registered", logging.String("uploader_id", id.ID))
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"id":         id.ID,
					"name":       id.Name,
					"source":     source,
					"registered": registered,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploader ID:   %s\n", id.ID)
			fmt.Fprintf(out, "Uploader name: %s\n", id.Name)
			fmt.Fprintf(out, "Source:        %s\n", source)
			if register {
				fmt.Fprintf(out, "Registered:    %s\n", yesNo(registered))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "Register the device with the locker")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the identity as JSON")
	return cmd
}
