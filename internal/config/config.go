package config

import (
	"github.com/paularlott/cli"
	"github.com/paularlott/loom/internal/log"
)

type ServerConfig struct {
	Listen   string
	URL      string
	Agent    AgentConfig
	Chat     ChatConfig
	BadgerDB BadgerDBConfig
	Redis    RedisConfig
	TLS      TLSConfig
}

type AgentConfig struct {
	Endpoint     string
	Token        string
	Profile      string
	ProfilesFile string
	Timeout      int
}

type ChatConfig struct {
	Debug           bool
	MaxTables       int
	EnableCitations bool
	RateLimit       int
	RateBurst       int
}

type BadgerDBConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Enabled    bool
	Hosts      []string
	Password   string
	DB         int
	MasterName string
	KeyPrefix  string
}

type TLSConfig struct {
	CertFile   string
	KeyFile    string
	UseTLS     bool
	SkipVerify bool
}

// Global configuration instance
var (
	serverConfig *ServerConfig
)

// SetServerConfig sets the global server configuration
func SetServerConfig(config *ServerConfig) {
	serverConfig = config
}

// GetServerConfig returns the global server configuration
func GetServerConfig() *ServerConfig {
	return serverConfig
}

const CONFIG_ENV_PREFIX = "LOOM"
const CONFIG_FILE = "loom.toml"
const CONFIG_DIR = "loom"

func InitCommonConfig(cmd *cli.Command) {
	logLevel := cmd.GetString("log-level")
	log.Configure(logLevel, "console", nil)
}
