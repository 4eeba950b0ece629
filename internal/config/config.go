package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultConfigFile = "config.json"
	defaultEnvFile    = ".env"

	envConfig      = "TGDESK_CONFIG"
	envEnvFile     = "TGDESK_ENV_FILE"
	envBackendURL  = "TGDESK_BACKEND_URL"
	envProxy       = "TGDESK_PROXY"
	envPollTimeout = "TGDESK_POLL_TIMEOUT"
	envMongoURI    = "TGDESK_MONGO_URI"
	envMongoDB     = "TGDESK_MONGO_DB"
	envWebListen   = "TGDESK_WEB_LISTEN"
	envDebug       = "TGDESK_DEBUG"
	envLogFile     = "TGDESK_LOG_FILE"
	envNegCache    = "TGDESK_NEGATIVE_USER_CACHE"
	envChatPage    = "TGDESK_CHAT_PAGE_SIZE"
	envHistoryPage = "TGDESK_HISTORY_PAGE_SIZE"
	envBell        = "TGDESK_BELL"
	envHeadless    = "TGDESK_HEADLESS"
)

// Duration reads "1s"-style strings from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type Config struct {
	BackendURL        string            `json:"BackendURL"`
	Proxy             string            `json:"Proxy"`
	PollTimeout       Duration          `json:"PollTimeout"`
	Mongo             map[string]string `json:"Mongo"`
	WebListen         string            `json:"WebListen"`
	Debug             bool              `json:"Debug"`
	LogFile           string            `json:"LogFile"`
	NegativeUserCache bool              `json:"NegativeUserCache"`
	ChatPageSize      int32             `json:"ChatPageSize"`
	HistoryPageSize   int32             `json:"HistoryPageSize"`
	Bell              bool              `json:"Bell"`
	Headless          bool              `json:"Headless"`
}

func Default() *Config {
	return &Config{
		PollTimeout:       Duration(time.Second),
		Mongo:             map[string]string{},
		LogFile:           "tgdesk.log",
		NegativeUserCache: true,
		ChatPageSize:      100,
		HistoryPageSize:   50,
	}
}

func (c *Config) MongoURI() string {
	return c.Mongo["uri"]
}

// MongoDB returns the database name, "tgdesk" when unset.
func (c *Config) MongoDB() string {
	if db := c.Mongo["db"]; db != "" {
		return db
	}
	return "tgdesk"
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return errors.New("BackendURL is required")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("PollTimeout must be positive (got %s)", time.Duration(c.PollTimeout))
	}
	if c.ChatPageSize <= 0 {
		return fmt.Errorf("ChatPageSize must be positive (got %d)", c.ChatPageSize)
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("HistoryPageSize must be positive (got %d)", c.HistoryPageSize)
	}

	return nil
}

func InitConfiguration() (*Config, error) {
	return LoadArgs(os.Args[1:], os.Environ())
}

// LoadArgs builds the configuration from, in increasing priority: defaults,
// the JSON config file, the .env file, the process environment and flags.
func LoadArgs(args []string, environ []string) (*Config, error) {
	env := parseEnv(environ)

	envFile := envOrDefault(env, envEnvFile, defaultEnvFile)
	fileEnv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}
	for k, v := range fileEnv {
		if _, ok := env[k]; !ok {
			env[k] = v
		}
	}

	cfg := Default()
	path, explicit := configPath(args, env)
	if err := UnmarshalJsonFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if cfg.Mongo == nil {
		cfg.Mongo = map[string]string{}
	}

	fset := flag.NewFlagSet("tgdesk", flag.ContinueOnError)
	fset.SetOutput(new(strings.Builder))

	fset.String("config", path, "path to the JSON config file")
	backendURL := fset.String("backend", envOrDefault(env, envBackendURL, cfg.BackendURL), "websocket URL of the tdjson relay")
	proxy := fset.String("proxy", envOrDefault(env, envProxy, cfg.Proxy), "proxy URL for the relay connection (socks5:// or http://)")
	pollTimeout := fset.Duration("poll-timeout", envOrDuration(env, envPollTimeout, time.Duration(cfg.PollTimeout)), "how long one receive call waits")
	mongoURI := fset.String("mongo-uri", envOrDefault(env, envMongoURI, cfg.Mongo["uri"]), "MongoDB URI for the folder store (empty keeps folders in memory)")
	mongoDB := fset.String("mongo-db", envOrDefault(env, envMongoDB, cfg.Mongo["db"]), "MongoDB database name")
	webListen := fset.String("web", envOrDefault(env, envWebListen, cfg.WebListen), "listen address of the debug web server (empty disables it)")
	debug := fset.Bool("debug", envOrBool(env, envDebug, cfg.Debug), "enable debug logging")
	logFile := fset.String("log-file", envOrDefault(env, envLogFile, cfg.LogFile), "path to the log file")
	negCache := fset.Bool("negative-user-cache", envOrBool(env, envNegCache, cfg.NegativeUserCache), "remember failed user lookups")
	chatPage := fset.Int("chat-page-size", envOrInt(env, envChatPage, int(cfg.ChatPageSize)), "chats requested per loadChats call")
	historyPage := fset.Int("history-page-size", envOrInt(env, envHistoryPage, int(cfg.HistoryPageSize)), "messages requested per history page")
	bell := fset.Bool("bell", envOrBool(env, envBell, cfg.Bell), "ring the terminal bell on notifications")
	headless := fset.Bool("headless", envOrBool(env, envHeadless, cfg.Headless), "run without the terminal UI")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	cfg.BackendURL = *backendURL
	cfg.Proxy = *proxy
	cfg.PollTimeout = Duration(*pollTimeout)
	cfg.Mongo["uri"] = *mongoURI
	cfg.Mongo["db"] = *mongoDB
	cfg.WebListen = *webListen
	cfg.Debug = *debug
	cfg.LogFile = *logFile
	cfg.NegativeUserCache = *negCache
	cfg.ChatPageSize = int32(*chatPage)
	cfg.HistoryPageSize = int32(*historyPage)
	cfg.Bell = *bell
	cfg.Headless = *headless

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func UnmarshalJsonFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open json file: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse json file: %w", err)
	}

	return nil
}

// configPath finds the config file before flags are parsed, since the file
// supplies the flag defaults.
func configPath(args []string, env map[string]string) (string, bool) {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	if v, ok := env[envConfig]; ok && v != "" {
		return v, true
	}

	return defaultConfigFile, false
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || k == "" {
			continue
		}
		values[k] = v
	}
	return values
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok {
		return v
	}
	return fallback
}

func envOrInt(env map[string]string, key string, fallback int) int {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(env map[string]string, key string, fallback bool) bool {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDuration(env map[string]string, key string, fallback time.Duration) time.Duration {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
