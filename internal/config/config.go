package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

const EnvPrefix = "DOODLE"

const (
	FixedTopic   = "yokohama/hackathon/running/player1"
	DynamicTopic = "yokohama/hackathon/running/#"
)

// Default subscriptions per transport: [fixed, dynamic].
var defaultTopics = map[string][2]string{
	"mqtt":  {FixedTopic, DynamicTopic},
	"redis": {FixedTopic, "yokohama/hackathon/running/*"},
	"nats":  {"yokohama.hackathon.running.player1", "yokohama.hackathon.running.>"},
}

type Config struct {
	Bind      string
	Port      int
	PublicURL string

	Mode          string
	MotionRouting string

	Transport      string
	BrokerURL      string
	Topic          string
	ClientID       string
	BrokerUsername string
	BrokerPassword string

	Store         string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string
	S3PublicURL   string
	PostgresDSN   string
	MaxUploadSize int64

	LogLevel        string
	Dev             bool
	ShutdownTimeout time.Duration
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet, c *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: DOODLE_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: DOODLE_PORT)")
	fs.StringVar(&c.PublicURL, "public-url", "", "externally visible base URL, used for blob and share links (env: DOODLE_PUBLIC_URL)")

	fs.StringVar(&c.Mode, "mode", string(engine.ModeDynamic), "pairing mode: fixed or dynamic (env: DOODLE_MODE)")
	fs.StringVar(&c.MotionRouting, "motion-routing", string(engine.RouteByID), "dynamic mode routing of motion messages: id or single (env: DOODLE_MOTION_ROUTING)")

	fs.StringVar(&c.Transport, "transport", "mqtt", "controller transport: mqtt, redis, nats or none (env: DOODLE_TRANSPORT)")
	fs.StringVar(&c.BrokerURL, "broker-url", "", "controller broker URL (env: DOODLE_BROKER_URL)")
	fs.StringVar(&c.Topic, "topic", "", "topic, channel or subject to subscribe to; defaults depend on --mode (env: DOODLE_TOPIC)")
	fs.StringVar(&c.ClientID, "client-id", "", "client id announced to the broker (env: DOODLE_CLIENT_ID)")
	fs.StringVar(&c.BrokerUsername, "broker-username", "", "broker username (env: DOODLE_BROKER_USERNAME)")
	fs.StringVar(&c.BrokerPassword, "broker-password", "", "broker password (env: DOODLE_BROKER_PASSWORD)")

	fs.StringVar(&c.Store, "store", "memory", "blob store: memory, s3 or postgres (env: DOODLE_STORE)")
	fs.StringVar(&c.S3Region, "s3-region", "us-east-1", "s3 region (env: DOODLE_S3_REGION)")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "s3 bucket (env: DOODLE_S3_BUCKET)")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", "", "s3 access key id; empty uses the default credential chain (env: DOODLE_S3_ACCESS_KEY)")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", "", "s3 secret access key (env: DOODLE_S3_SECRET_KEY)")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "custom s3 endpoint, e.g. MinIO (env: DOODLE_S3_ENDPOINT)")
	fs.StringVar(&c.S3PublicURL, "s3-public-url", "", "base URL for object links (env: DOODLE_S3_PUBLIC_URL)")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", "", "postgres DSN for --store=postgres (env: DOODLE_POSTGRES_DSN)")
	fs.Int64Var(&c.MaxUploadSize, "max-upload-size", 10<<20, "largest accepted upload in bytes (env: DOODLE_MAX_UPLOAD_SIZE)")

	fs.StringVar(&c.LogLevel, "log-level", "info", "log level (env: DOODLE_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human-readable development logging (env: DOODLE_DEV)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "grace period for in-flight requests (env: DOODLE_SHUTDOWN_TIMEOUT)")
}

// BindEnv lets DOODLE_* variables fill every flag not set on the command line.
// Call it after RegisterFlags and before parsing.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// LoadDotEnv reads KEY=value pairs from path into the environment. A
// missing file is not an error; variables already set win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if _, err := engine.NewStrategy(engine.Mode(c.Mode), engine.Routing(c.MotionRouting)); err != nil {
		return err
	}

	switch c.Transport {
	case "none":
	case "mqtt", "redis", "nats":
	default:
		return fmt.Errorf("unknown transport %q (want mqtt, redis, nats or none)", c.Transport)
	}

	switch c.Store {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("--s3-bucket is required for --store=s3")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return errors.New("both --s3-access-key and --s3-secret-key must be provided together")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("--postgres-dsn is required for --store=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, s3 or postgres)", c.Store)
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url: %q", c.PublicURL)
		}
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("invalid max upload size: %d", c.MaxUploadSize)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// BaseURL is where browsers reach this server.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return "http://localhost:" + strconv.Itoa(c.Port)
}

// ResolvedTopic falls back to the subscription matching what the
// controllers publish in the configured mode, spelled for the transport.
func (c *Config) ResolvedTopic() string {
	if c.Topic != "" {
		return c.Topic
	}
	topics, ok := defaultTopics[c.Transport]
	if !ok {
		return ""
	}
	if engine.Mode(c.Mode) == engine.ModeFixed {
		return topics[0]
	}
	return topics[1]
}
