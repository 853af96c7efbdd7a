package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type HTTPServer struct {
	Host string
	Port string
}

// Storage selects the room store: "sqlite" or "postgres".
type Storage struct {
	Driver string
}

type SQLite struct {
	Path     string
	PoolSize int
}

type RedisCache struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether session tokens go to redis instead of the room
// store.
func (r RedisCache) Enabled() bool {
	return r.Host != ""
}

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type Session struct {
	TTL time.Duration
}

type Room struct {
	IdleTTL      time.Duration
	DefaultsFile string
	Defaults     model.Settings
}

type Notifier struct {
	URLs    []string
	Timeout time.Duration
	Retries int
}

type Config struct {
	HTTP     HTTPServer
	Storage  Storage
	SQLite   SQLite
	Redis    RedisCache
	Postgres Postgres
	Session  Session
	Room     Room
	Notifier Notifier
}

const (
	logtag = "[config]"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func Load() *Config {
	configPath := pflag.String("config", "", "path env file")
	pflag.Parse()

	if *configPath != "" {
		if err := godotenv.Load(*configPath); err != nil {
			log.Fatalf("%s err loading env from file : %v", logtag, err)
		}
		log.Printf("%s using env from : %s", logtag, *configPath)
	} else {
		log.Printf("%s using env from .env", logtag)
		_ = godotenv.Load()
	}

	room, err := newRoom()
	if err != nil {
		log.Fatalf("%s err loading room defaults : %v", logtag, err)
	}

	cfg := &Config{
		HTTP:     *newHTTP(),
		Storage:  *newStorage(),
		SQLite:   *newSQLite(),
		Redis:    *newRedis(),
		Postgres: *newPostgres(),
		Session:  *newSession(),
		Room:     *room,
		Notifier: *newNotifier(),
	}

	log.Printf("%s backend config : %+v\n", logtag, cfg)
	return cfg
}

func newHTTP() *HTTPServer {
	return &HTTPServer{
		Port: getenv("HTTP_PORT", "8080"),
		Host: getenv("HTTP_HOST", "localhost"),
	}
}

func newStorage() *Storage {
	return &Storage{
		Driver: getenv("STORAGE_DRIVER", DriverSQLite),
	}
}

func newSQLite() *SQLite {
	return &SQLite{
		Path:     getenv("SQLITE_PATH", "sprintjam.db"),
		PoolSize: getint("SQLITE_POOL_SIZE", 4),
	}
}

func newRedis() *RedisCache {
	return &RedisCache{
		Port:     getenv("REDIS_PORT", "6379"),
		Host:     getenv("REDIS_HOST", ""),
		Password: getenv("REDIS_PASSWORD", ""),
	}
}

func newPostgres() *Postgres {
	return &Postgres{
		Host:     getenv("DB_HOST", "localhost"),
		Port:     getenv("DB_PORT", "5432"),
		User:     getenv("DB_USER", "admin"),
		Password: getenv("DB_PASSWORD", "shared"),
		DBName:   getenv("DB_NAME", "sprintjam"),
		SSLMode:  getenv("DB_SSLMODE", "disable"),
	}
}

func newSession() *Session {
	return &Session{
		TTL: getduration("SESSION_TTL", 7*24*time.Hour),
	}
}

func newRoom() (*Room, error) {
	r := &Room{
		IdleTTL:      getduration("ROOM_IDLE_TTL", 10*time.Minute),
		DefaultsFile: getenv("ROOM_DEFAULTS_FILE", ""),
		Defaults:     model.DefaultSettings(),
	}
	if r.DefaultsFile == "" {
		return r, nil
	}
	defaults, err := LoadRoomDefaults(r.DefaultsFile)
	if err != nil {
		return nil, err
	}
	r.Defaults = defaults
	return r, nil
}

func newNotifier() *Notifier {
	var urls []string
	for _, u := range strings.Split(getenv("ROUND_WEBHOOK_URLS", ""), ";") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return &Notifier{
		URLs:    urls,
		Timeout: getduration("ROUND_WEBHOOK_TIMEOUT", 5*time.Second),
		Retries: getint("ROUND_WEBHOOK_RETRIES", 3),
	}
}

// LoadRoomDefaults reads a YAML settings document. Keys it omits keep the
// built-in defaults.
func LoadRoomDefaults(path string) (model.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, err
	}
	settings := model.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return model.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

func getenv(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		fmt.Printf("%s %s undefined. Using default value %s\n", logtag, key, defaultValue)
		return defaultValue
	}
	fmt.Printf("%s %s = %s\n", logtag, key, val)
	return val
}

func getint(key string, defaultValue int) int {
	raw := getenv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Printf("%s %s is not an integer. Using default value %d\n", logtag, key, defaultValue)
		return defaultValue
	}
	return v
}

func getduration(key string, defaultValue time.Duration) time.Duration {
	raw := getenv(key, defaultValue.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Printf("%s %s is not a duration. Using default value %s\n", logtag, key, defaultValue)
		return defaultValue
	}
	return v
}
