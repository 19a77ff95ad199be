package command_server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/loom/internal/agent"
	"github.com/paularlott/loom/internal/chat"
	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database"
	"github.com/paularlott/loom/internal/log"
	"github.com/paularlott/loom/internal/util"
	"github.com/paularlott/loom/web"

	"github.com/paularlott/cli"
)

var ServerCmd = &cli.Command{
	Name:        "server",
	Usage:       "Start the loom server",
	Description: `Starts the loom server which proxies chat requests to the agent service, reconciles the event streams into turns and serves the web interface.`,
	MaxArgs:     cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "listen",
			Aliases:      []string{"l"},
			Usage:        "The address and port to listen on.",
			ConfigPath:   []string{"server.listen"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_LISTEN"},
			DefaultValue: ":3000",
		},
		&cli.StringFlag{
			Name:       "url",
			Usage:      "The URL to use to access the server.",
			ConfigPath: []string{"server.url"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_URL"},
		},
		&cli.StringFlag{
			Name:       "agent-endpoint",
			Usage:      "The base URL of the agent service.",
			ConfigPath: []string{"server.agent.endpoint"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_AGENT_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:       "agent-token",
			Usage:      "The bearer token for the agent service.",
			ConfigPath: []string{"server.agent.token"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_AGENT_TOKEN"},
		},
		&cli.StringFlag{
			Name:       "agent-profile",
			Usage:      "The default agent profile for new threads.",
			ConfigPath: []string{"server.agent.profile"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_AGENT_PROFILE"},
		},
		&cli.StringFlag{
			Name:       "agent-profiles-file",
			Usage:      "Path to the TOML file holding the agent profiles.",
			ConfigPath: []string{"server.agent.profiles_file"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_AGENT_PROFILES_FILE"},
		},
		&cli.IntFlag{
			Name:         "agent-timeout",
			Usage:        "Timeout in seconds for agent requests.",
			ConfigPath:   []string{"server.agent.timeout"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_AGENT_TIMEOUT"},
			DefaultValue: 300,
		},
		&cli.BoolFlag{
			Name:         "chat-debug",
			Usage:        "Capture the raw agent events and expose the debug endpoints.",
			ConfigPath:   []string{"server.chat.debug"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_CHAT_DEBUG"},
			DefaultValue: false,
		},
		&cli.IntFlag{
			Name:         "chat-max-tables",
			Usage:        "Maximum number of tables to keep per request.",
			ConfigPath:   []string{"server.chat.max_tables"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_CHAT_MAX_TABLES"},
			DefaultValue: 10,
		},
		&cli.BoolFlag{
			Name:         "chat-citations",
			Usage:        "Resolve citation markers in answers into numbered links.",
			ConfigPath:   []string{"server.chat.citations"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_CHAT_CITATIONS"},
			DefaultValue: true,
		},
		&cli.IntFlag{
			Name:         "chat-rate-limit",
			Usage:        "Chat requests allowed per minute per IP, 0 disables limiting.",
			ConfigPath:   []string{"server.chat.rate_limit"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_CHAT_RATE_LIMIT"},
			DefaultValue: 0,
		},
		&cli.IntFlag{
			Name:         "chat-rate-burst",
			Usage:        "Burst size for the chat rate limit.",
			ConfigPath:   []string{"server.chat.rate_burst"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_CHAT_RATE_BURST"},
			DefaultValue: 5,
		},
		&cli.BoolFlag{
			Name:         "badgerdb-enabled",
			Usage:        "Enable the BadgerDB store.",
			ConfigPath:   []string{"server.badgerdb.enabled"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_BADGERDB_ENABLED"},
			DefaultValue: false,
		},
		&cli.StringFlag{
			Name:         "badgerdb-path",
			Usage:        "The path to the BadgerDB database.",
			ConfigPath:   []string{"server.badgerdb.path"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_BADGERDB_PATH"},
			DefaultValue: "./.badgerdb",
		},
		&cli.BoolFlag{
			Name:         "redis-enabled",
			Usage:        "Enable the Redis store.",
			ConfigPath:   []string{"server.redis.enabled"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_REDIS_ENABLED"},
			DefaultValue: false,
		},
		&cli.StringSliceFlag{
			Name:       "redis-hosts",
			Usage:      "The redis server, can be given multiple times for sentinel or cluster.",
			ConfigPath: []string{"server.redis.hosts"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_HOSTS"},
		},
		&cli.StringFlag{
			Name:       "redis-password",
			Usage:      "The password for the redis server.",
			ConfigPath: []string{"server.redis.password"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:         "redis-db",
			Usage:        "The redis database to use.",
			ConfigPath:   []string{"server.redis.db"},
			EnvVars:      []string{config.CONFIG_ENV_PREFIX + "_REDIS_DB"},
			DefaultValue: 0,
		},
		&cli.StringFlag{
			Name:       "redis-master-name",
			Usage:      "The name of the master when using sentinel.",
			ConfigPath: []string{"server.redis.master_name"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_MASTER_NAME"},
		},
		&cli.StringFlag{
			Name:       "redis-key-prefix",
			Usage:      "The prefix to apply to all redis keys.",
			ConfigPath: []string{"server.redis.key_prefix"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_REDIS_KEY_PREFIX"},
		},
		&cli.StringFlag{
			Name:       "cert-file",
			Usage:      "The file with the PEM encoded certificate to use for the server.",
			ConfigPath: []string{"server.tls.cert_file"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_CERT_FILE"},
		},
		&cli.StringFlag{
			Name:       "key-file",
			Usage:      "The file with the PEM encoded key to use for the server.",
			ConfigPath: []string{"server.tls.key_file"},
			EnvVars:    []string{config.CONFIG_ENV_PREFIX + "_KEY_FILE"},
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		cfg := &config.ServerConfig{
			Listen: util.FixListenAddress(cmd.GetString("listen")),
			URL:    cmd.GetString("url"),
			Agent: config.AgentConfig{
				Endpoint:     cmd.GetString("agent-endpoint"),
				Token:        cmd.GetString("agent-token"),
				Profile:      cmd.GetString("agent-profile"),
				ProfilesFile: cmd.GetString("agent-profiles-file"),
				Timeout:      cmd.GetInt("agent-timeout"),
			},
			Chat: config.ChatConfig{
				Debug:           cmd.GetBool("chat-debug"),
				MaxTables:       cmd.GetInt("chat-max-tables"),
				EnableCitations: cmd.GetBool("chat-citations"),
				RateLimit:       cmd.GetInt("chat-rate-limit"),
				RateBurst:       cmd.GetInt("chat-rate-burst"),
			},
			BadgerDB: config.BadgerDBConfig{
				Enabled: cmd.GetBool("badgerdb-enabled"),
				Path:    cmd.GetString("badgerdb-path"),
			},
			Redis: config.RedisConfig{
				Enabled:    cmd.GetBool("redis-enabled"),
				Hosts:      cmd.GetStringSlice("redis-hosts"),
				Password:   cmd.GetString("redis-password"),
				DB:         cmd.GetInt("redis-db"),
				MasterName: cmd.GetString("redis-master-name"),
				KeyPrefix:  cmd.GetString("redis-key-prefix"),
			},
			TLS: config.TLSConfig{
				CertFile: cmd.GetString("cert-file"),
				KeyFile:  cmd.GetString("key-file"),
				UseTLS:   cmd.GetString("cert-file") != "" && cmd.GetString("key-file") != "",
			},
		}
		config.SetServerConfig(cfg)

		if cfg.Agent.Endpoint == "" {
			return fmt.Errorf("an agent endpoint is required, set --agent-endpoint")
		}

		// Load the agent profiles if a file was given
		if cfg.Agent.ProfilesFile != "" {
			if err := agent.GetProfileService().Load(cfg.Agent.ProfilesFile); err != nil {
				return fmt.Errorf("failed to load agent profiles: %w", err)
			}
		}

		// Open the database
		database.GetInstance()

		router := http.NewServeMux()

		if _, err := chat.NewService(cfg, router); err != nil {
			return err
		}

		// Web interface
		router.Handle("GET /", web.Handler())

		server := &http.Server{
			Addr:         cfg.Listen,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // Streaming endpoints manage their own deadlines
		}

		go func() {
			var err error

			log.Info("server: listening", "listen", cfg.Listen, "tls", cfg.TLS.UseTLS)
			if cfg.TLS.UseTLS {
				err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("server: failed to start", "error", err.Error())
			}
		}()

		// Wait for a signal to shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("server: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
