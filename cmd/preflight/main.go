// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hamed0406/domainwatch/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		fail(err.Error())
	}
	ok("config valid")

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes would be open).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; read routes accept admin keys only.")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if cfg.Addr == "" {
		warn("API_ADDR is empty; the HTTP API is disabled.")
	} else {
		ok("API_ADDR=" + cfg.Addr)
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		warn("STORE_DRIVER=memory; monitoring state is lost on restart.")
	case config.DriverPostgres:
		ok("STORE_DRIVER=postgres, DATABASE_URL present")
	default:
		ok("STORE_DRIVER=sqlite at " + cfg.SQLitePath)
	}

	if cfg.TelegramToken == "" {
		warn("TELEGRAM_TOKEN empty; no bot registration and no chat alerts.")
	} else {
		ok("TELEGRAM_TOKEN present")
	}
	if cfg.SlackWebhook != "" {
		ok("Slack mirror enabled")
	}
	if cfg.BrevoAPIKey != "" {
		ok("email mirror enabled to " + cfg.BrevoTo)
	}

	ok(fmt.Sprintf("sweep every %s, alert after %s down, probe timeout %s",
		cfg.SweepInterval, cfg.AlertThreshold, cfg.ProbeTimeout))

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
