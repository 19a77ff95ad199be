package command_export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/util"
	"github.com/paularlott/loom/internal/util/rest"

	"github.com/paularlott/cli"
	"gopkg.in/yaml.v3"
)

type threadExport struct {
	Thread threadInfo   `yaml:"thread" json:"thread"`
	Turns  []turnExport `yaml:"turns" json:"turns"`
}

type threadInfo struct {
	Id        string    `yaml:"thread_id" json:"thread_id"`
	Title     string    `yaml:"title" json:"title"`
	Profile   string    `yaml:"profile,omitempty" json:"profile,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

type turnExport struct {
	Id        string           `yaml:"turn_id" json:"turn_id"`
	Role      string           `yaml:"role" json:"role"`
	Text      string           `yaml:"text" json:"text"`
	Citations []model.Citation `yaml:"citations,omitempty" json:"citations,omitempty"`
	Error     string           `yaml:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time        `yaml:"created_at" json:"created_at"`
}

var ExportCmd = &cli.Command{
	Name:        "export",
	Usage:       "Export a chat thread",
	Description: "Fetch a chat thread and its turns from a server and write it out as YAML or JSON.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "thread_id",
			Usage:    "The ID of the thread to export",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "The address of the remote server to connect to.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "The token to use for authentication.",
			EnvVars: []string{config.CONFIG_ENV_PREFIX + "_TOKEN"},
		},
		&cli.BoolFlag{
			Name:         "tls-skip-verify",
			Usage:        "Skip TLS verification when talking to server.",
			ConfigPath:   []string{"tls.skip_verify"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_TLS_SKIP_VERIFY"},
			DefaultValue: true,
		},
		&cli.StringFlag{
			Name:         "alias",
			Aliases:      []string{"a"},
			Usage:        "The server alias to use.",
			DefaultValue: "default",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Write the export to a file instead of stdout.",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON instead of YAML.",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		threadId := cmd.GetStringArg("thread_id")

		alias := cmd.GetString("alias")
		cfg := config.GetServerAddr(alias, cmd)

		client, err := rest.NewClient(cfg.HttpServer, cfg.ApiToken, cmd.GetBool("tls-skip-verify"))
		if err != nil {
			return fmt.Errorf("failed to create REST client: %w", err)
		}
		client.SetContentType(rest.ContentTypeJSON)

		var thread model.Thread
		code, err := client.Get(ctx, "api/threads/"+threadId, &thread)
		if err != nil {
			return fmt.Errorf("failed to fetch thread: %w", err)
		}
		if code == http.StatusNotFound {
			return fmt.Errorf("thread %s not found", threadId)
		}
		if code != http.StatusOK {
			return fmt.Errorf("failed to fetch thread, server returned %d", code)
		}

		var turns []model.Turn
		code, err = client.Get(ctx, "api/threads/"+threadId+"/turns", &turns)
		if err != nil {
			return fmt.Errorf("failed to fetch turns: %w", err)
		}
		if code != http.StatusOK {
			return fmt.Errorf("failed to fetch turns, server returned %d", code)
		}

		export := threadExport{
			Thread: threadInfo{
				Id:        thread.Id,
				Title:     thread.Title,
				Profile:   thread.Profile,
				CreatedAt: thread.CreatedAt,
				UpdatedAt: thread.UpdatedAt,
			},
			Turns: make([]turnExport, 0, len(turns)),
		}

		for _, turn := range turns {
			text := turn.ProcessedText
			if text == "" {
				text = turn.RawText
			}

			export.Turns = append(export.Turns, turnExport{
				Id:        turn.Id,
				Role:      turn.Role,
				Text:      text,
				Citations: turn.Citations,
				Error:     turn.ErrorText,
				CreatedAt: turn.CreatedAt,
			})
		}

		if cmd.GetString("file") == "" && cmd.GetBool("json") {
			return util.PrettyPrintJSON(export)
		}

		var data []byte
		if cmd.GetBool("json") {
			data, err = json.MarshalIndent(export, "", "  ")
		} else {
			data, err = yaml.Marshal(export)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal thread: %w", err)
		}

		if file := cmd.GetString("file"); file != "" {
			if err := os.WriteFile(file, data, 0644); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			fmt.Printf("Exported thread %s to %s\n", threadId, file)
		} else {
			fmt.Print(string(data))
		}

		return nil
	},
}
