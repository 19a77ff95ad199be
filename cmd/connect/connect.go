package command_connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/loom/internal/config"

	"github.com/paularlott/cli"
)

var ConnectCmd = &cli.Command{
	Name:        "connect",
	Usage:       "Connect to server",
	Description: "Save the address and access token of a remote server in the local config.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "server",
			Usage:    "The server to connect to",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "The access token to use for the server.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_TOKEN"},
		},
		&cli.StringFlag{
			Name:         "alias",
			Aliases:      []string{"a"},
			Usage:        "The server alias to use.",
			DefaultValue: "default",
		},
	},
	Commands: []*cli.Command{
		ConnectDeleteCmd,
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		server := cmd.GetStringArg("server")

		// If server doesn't start with http or https, assume https
		if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
			server = "https://" + server
		}

		alias := cmd.GetString("alias")
		if err := config.SaveConnection(alias, server, cmd.GetString("token"), cmd); err != nil {
			return err
		}

		fmt.Printf("Saved connection '%s' for server %s\n", alias, server)
		return nil
	},
}

var ConnectDeleteCmd = &cli.Command{
	Name:        "delete",
	Usage:       "Delete connection alias",
	Description: "Delete a given connection alias.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "alias",
			Usage:    "The alias to delete",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		alias := cmd.GetStringArg("alias")

		if cmd.ConfigFile.FileUsed() == "" {
			return fmt.Errorf("No configuration file has been used.")
		}

		cmd.ConfigFile.DeleteKey("client.connection." + alias)
		if err := cmd.ConfigFile.Save(); err != nil {
			return fmt.Errorf("Failed to save config file: %v", err)
		}

		fmt.Printf("Successfully deleted connection '%s'.\n", alias)
		return nil
	},
}
