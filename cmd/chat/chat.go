package command_chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/util"
	"github.com/paularlott/loom/internal/util/rest"

	"github.com/paularlott/cli"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorBlue   = "\033[34m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorRed    = "\033[31m"
)

type chatRequest struct {
	ThreadId string `json:"thread_id,omitempty"`
	Message  string `json:"message"`
	Profile  string `json:"profile,omitempty"`
}

var ChatCmd = &cli.Command{
	Name:  "chat",
	Usage: "Start an interactive chat session",
	Description: `The chat command allows you to have an interactive conversation through a loom server.

Type your messages and press Enter to send them. The assistant will respond in real-time.
Type 'exit' or 'quit' to end the session.`,
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
			Name:  "thread",
			Usage: "Continue an existing thread instead of starting a new one.",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "The agent profile to use for new threads.",
		},
		&cli.BoolFlag{
			Name:         "show-status",
			Usage:        "Show the agent status updates while it works.",
			DefaultValue: false,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		alias := cmd.GetString("alias")
		cfg := config.GetServerAddr(alias, cmd)

		// Create REST client
		client, err := rest.NewClient(cfg.HttpServer, cfg.ApiToken, cmd.GetBool("tls-skip-verify"))
		if err != nil {
			return fmt.Errorf("failed to create REST client: %w", err)
		}
		client.SetTimeout(5 * time.Minute)
		client.SetContentType(rest.ContentTypeJSON)

		fmt.Printf("%sloom%s\n", ColorBold+ColorCyan, ColorReset)
		fmt.Printf("%sType your message and press Enter. Type 'exit' or 'quit' to end the session.%s\n", ColorGray, ColorReset)
		fmt.Println()

		threadId := cmd.GetString("thread")
		profile := cmd.GetString("profile")
		showStatus := cmd.GetBool("show-status")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Printf("%s%sYou:%s ", ColorBold, ColorBlue, ColorReset)
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "exit" || input == "quit" {
				fmt.Printf("%sGoodbye!%s\n", ColorYellow, ColorReset)
				break
			}

			newThreadId, err := sendChatRequest(client, chatRequest{
				ThreadId: threadId,
				Message:  input,
				Profile:  profile,
			}, showStatus)
			if err != nil {
				fmt.Printf("%sError:%s %v\n", ColorRed, ColorReset, err)
				continue
			}
			if newThreadId != "" {
				threadId = newThreadId
			}

			fmt.Println()
		}

		return nil
	},
}

func sendChatRequest(client *rest.RESTClient, req chatRequest, showStatus bool) (string, error) {
	fmt.Printf("%s%sAssistant:%s ", ColorBold, ColorGreen, ColorReset)

	var threadId string

	err := client.StreamEvents(
		context.Background(),
		"POST",
		"api/chat/stream",
		req,
		nil,
		func(event string, data []byte) (bool, error) {
			switch event {
			case "status":
				if showStatus {
					var status struct {
						Status string `json:"status"`
					}
					if err := json.Unmarshal(data, &status); err == nil {
						fmt.Printf("\n%s[%s]%s ", ColorGray, status.Status, ColorReset)
					}
				}

			case "delta":
				var delta struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal(data, &delta); err == nil {
					fmt.Print(delta.Text)
				}

			case "reset":
				fmt.Printf("\n%s(the agent restarted its answer)%s\n", ColorGray, ColorReset)

			case "table":
				var table struct {
					Columns []string `json:"columns"`
					Rows    [][]any  `json:"rows"`
				}
				if err := json.Unmarshal(data, &table); err == nil {
					fmt.Println()
					printResultTable(table.Columns, table.Rows)
				}

			case "error":
				var agentError struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(data, &agentError); err == nil && agentError.Message != "" {
					fmt.Printf("\n%sAgent error:%s %s\n", ColorRed, ColorReset, agentError.Message)
				}

			case "turn":
				var turn model.Turn
				if err := json.Unmarshal(data, &turn); err == nil {
					threadId = turn.ThreadId
				}
				fmt.Println()
				return true, nil
			}

			return false, nil
		},
	)

	if err != nil {
		return "", err
	}

	return threadId, nil
}

func printResultTable(columns []string, rows [][]any) {
	table := [][]string{columns}
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i := range columns {
			if i < len(row) {
				cells[i] = fmt.Sprintf("%v", row[i])
			}
		}
		table = append(table, cells)
	}
	util.PrintTable(table)
}
