package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paularlott/loom/build"
	command_chat "github.com/paularlott/loom/cmd/chat"
	command_connect "github.com/paularlott/loom/cmd/connect"
	command_export "github.com/paularlott/loom/cmd/export"
	command_server "github.com/paularlott/loom/cmd/server"
	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/log"

	"github.com/paularlott/cli"
	cli_toml "github.com/paularlott/cli/toml"
)

func main() {
	// Logger will be configured with proper level from CLI flags
	log.Configure("info", "console", os.Stderr)

	var configFile = config.CONFIG_FILE

	cmd := &cli.Command{
		Name:        "loom",
		Usage:       "Chat front end for agent services",
		Description: `loom runs a small web front end for a remote agent service, reconciling the agent's event stream into chat turns and serving them to the browser.`,
		Version:     build.Version,
		ConfigFile: cli_toml.NewConfigFile(&configFile, func() []string {
			paths := []string{"."}

			home, err := os.UserHomeDir()
			if err == nil {
				paths = append(paths, home)
			}

			paths = append(paths, filepath.Join(home, ".config", config.CONFIG_DIR))

			return paths
		}),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Name and path to the configuration file to use.",
				DefaultText: config.CONFIG_FILE + " in the current directory, $HOME/ or $HOME/.config/" + config.CONFIG_DIR + "/" + config.CONFIG_FILE,
				EnvVars:     []string{config.CONFIG_ENV_PREFIX + "_CONFIG"},
				AssignTo:    &configFile,
			},
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level one of trace, debug, info, warn, error, fatal, panic",
				ConfigPath:   []string{"log.level"},
				EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_LOGLEVEL"},
				DefaultValue: "info",
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			config.InitCommonConfig(cmd)
			return ctx, nil
		},
		Commands: []*cli.Command{
			command_server.ServerCmd,
			command_chat.ChatCmd,
			command_connect.ConnectCmd,
			command_export.ExportCmd,
		},
	}

	err := cmd.Execute(context.Background())
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	os.Exit(0)
}
