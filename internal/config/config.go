package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	UIWeb      = "web"
	UITerminal = "terminal"

	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendEthereum = "ethereum"
)

type Config struct {
	LogLevel    string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	UI          string        `yaml:"ui" env:"UI" env-default:"web"`
	HTTPPort    string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort  string        `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	NotifyDelay time.Duration `yaml:"notify-delay" env:"NOTIFY_DELAY" env-default:"10ms"`
	Remote      Remote        `yaml:"remote"`
	Redis       Redis         `yaml:"redis"`
	Ethereum    Ethereum      `yaml:"ethereum"`
}

// Remote describes where canonical game state lives and how it is reached.
type Remote struct {
	Backend        string        `yaml:"backend" env:"REMOTE_BACKEND" env-default:"memory"`
	Timeout        time.Duration `yaml:"timeout" env:"REMOTE_TIMEOUT" env-default:"30s"`
	Optimistic     bool          `yaml:"optimistic" env:"REMOTE_OPTIMISTIC" env-default:"false"`
	StatusEncoding string        `yaml:"status-encoding" env:"REMOTE_STATUS_ENCODING" env-default:"ordinal"`
	Identity       string        `yaml:"identity" env:"REMOTE_IDENTITY" env-default:"player-1"`
	GameID         string        `yaml:"game-id" env:"REMOTE_GAME_ID" env-default:"default"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Ethereum struct {
	RPCURL          string `yaml:"rpc-url" env:"ETH_RPC_URL" env-default:"http://localhost:8545"`
	ContractAddress string `yaml:"contract-address" env:"ETH_CONTRACT_ADDRESS"`
	PrivateKey      string `yaml:"private-key" env:"ETH_PRIVATE_KEY"`
	GasLimit        uint64 `yaml:"gas-limit" env:"ETH_GAS_LIMIT" env-default:"0"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads the yaml file at path, then applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
