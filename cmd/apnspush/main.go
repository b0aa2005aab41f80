package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sideshow/apns2/payload"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-apns-dispatcher/apns"
	"github.com/tinywideclouds/go-apns-dispatcher/apns/config"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/storage/cache"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

//go:embed local.yaml
var configFile []byte

// Exit codes.
const (
	exitOK = iota
	exitSetup
	exitRejected
	exitInvalidToken
)

type flags struct {
	token       string
	payloadFile string
	title       string
	body        string
	sound       string
	id          string
	collapseID  string
	priority    int
	expiration  int64
	background  bool
	printToken  bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("apnspush", flag.ContinueOnError)
	fs.StringVar(&f.token, "token", "", "device token (hex)")
	fs.StringVar(&f.payloadFile, "payload", "", "path to a JSON payload file")
	fs.StringVar(&f.title, "title", "", "alert title")
	fs.StringVar(&f.body, "body", "", "alert body")
	fs.StringVar(&f.sound, "sound", "", "sound name")
	fs.StringVar(&f.id, "id", "", `apns-id; "auto" generates a UUID`)
	fs.StringVar(&f.collapseID, "collapse-id", "", "apns-collapse-id")
	fs.IntVar(&f.priority, "priority", apns.PriorityImmediate, "apns-priority (5 or 10)")
	fs.Int64Var(&f.expiration, "expiration", 0, "apns-expiration in Unix seconds")
	fs.BoolVar(&f.background, "background", false, "send as a background push")
	fs.BoolVar(&f.printToken, "print-token", false, "print the provider token and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.printToken {
		return f, nil
	}
	if f.token == "" {
		return nil, errors.New("-token is required")
	}
	if f.payloadFile != "" && (f.title != "" || f.body != "" || f.sound != "") {
		return nil, errors.New("-payload cannot be combined with -title, -body or -sound")
	}
	if strings.EqualFold(f.id, "auto") {
		f.id = uuid.NewString()
	} else if f.id != "" {
		if _, err := uuid.Parse(f.id); err != nil {
			return nil, fmt.Errorf("invalid -id: %w", err)
		}
	}
	return f, nil
}

// buildNotification reads the payload file or assembles an aps dictionary
// from the alert flags.
func buildNotification(f *flags) (interface{}, error) {
	if f.payloadFile != "" {
		raw, err := os.ReadFile(f.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		var doc map[string]interface{}
		if err := codec.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("payload is not a JSON object: %w", err)
		}
		return doc, nil
	}

	p := payload.NewPayload()
	if f.title != "" {
		p.AlertTitle(f.title)
	}
	if f.body != "" {
		p.AlertBody(f.body)
	}
	if f.sound != "" {
		p.Sound(f.sound)
	}
	if f.background {
		p.ContentAvailable()
	}
	return p, nil
}

func (f *flags) sendOptions() []apns.SendOption {
	opts := []apns.SendOption{
		apns.WithID(f.id),
		apns.WithCollapseID(f.collapseID),
		apns.WithPriority(f.priority),
		apns.WithExpiration(f.expiration),
	}
	if f.background {
		opts = append(opts, apns.Background())
	}
	return opts
}

func newLogger() *slog.Logger {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "apnspush")
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, err
	}
	return config.UpdateConfigWithEnvOverrides(baseCfg, logger)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := newLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		logger.Error("Invalid arguments", "err", err)
		return exitSetup
	}

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		return exitSetup
	}

	// --- Token Cache (optional) ---
	var tokenCache signer.Cache
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis token cache...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			return exitSetup
		}
		defer redisClient.Close()
		tokenCache = redisClient
	}

	if f.printToken {
		return printToken(ctx, cfg, tokenCache, logger)
	}

	notification, err := buildNotification(f)
	if err != nil {
		logger.Error("Payload failed", "err", err)
		return exitSetup
	}

	opts := cfg.DispatcherOptions()
	if tokenCache != nil {
		opts = append(opts, apns.WithTokenCache(tokenCache))
	}
	dispatcher, err := apns.New(cfg.DispatcherConfig(), logger, opts...)
	if err != nil {
		logger.Error("Dispatcher creation failed", "err", err)
		return exitSetup
	}

	return send(ctx, dispatcher, notification, f, logger)
}

func send(ctx context.Context, sender dispatch.Sender, notification interface{}, f *flags, logger *slog.Logger) int {
	defer sender.Close()

	log := logger.With("device_token", f.token, "apns_id", f.id)
	err := sender.Send(ctx, notification, f.token, f.sendOptions()...)
	if err == nil {
		log.Info("Notification accepted")
		return exitOK
	}

	var credErr *signer.CredentialError
	var derr *apns.DeliveryError
	switch {
	case errors.As(err, &credErr):
		log.Error("Provider credentials rejected", "key_id", credErr.KeyID, "err", credErr.Err)
		return exitSetup
	case errors.As(err, &derr) && derr.DeviceTokenInvalid():
		log.Warn("Device token is no longer valid", "status", derr.StatusCode, "reason", derr.Reason, "since", derr.Time())
		return exitInvalidToken
	case errors.As(err, &derr):
		log.Error("APNs rejected notification",
			"status", derr.StatusCode,
			"reason", derr.Reason,
			"temporary", derr.Temporary(),
			"err", err,
		)
		return exitRejected
	default:
		log.Error("Send failed", "err", err)
		return exitRejected
	}
}

func printToken(ctx context.Context, cfg *config.Config, tokenCache signer.Cache, logger *slog.Logger) int {
	var source dispatch.TokenSource = signer.NewProvider(
		signer.Credential{PrivateKey: cfg.PrivateKey, KeyID: cfg.KeyID, TeamID: cfg.TeamID},
		signer.New(signer.WithEncoding(cfg.TokenEncoding)),
		signer.WithRefreshInterval(cfg.TokenRefresh),
		signer.WithCache(tokenCache),
		signer.WithLogger(logger),
	)
	token, err := source.Token(ctx)
	if err != nil {
		logger.Error("Token signing failed", "err", err)
		return exitSetup
	}
	fmt.Println(token)
	return exitOK
}
