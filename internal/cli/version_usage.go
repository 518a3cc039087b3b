package cli

import (
	"fmt"
	"os/exec"
	"strings"
)

func printUsage() {
	fmt.Println(`gridhud - registration and scan service for in-world HUD devices

HUDs sign each request with a shared secret; the server verifies the
signature, tracks who is online and answers scan lookups.

Usage:
  gridhud serve                         Start the service (also the default)
  gridhud serve --secret KEY            Shared secret the HUD script embeds
  gridhud serve --db ./hud.db           Persist registrations in SQLite
  gridhud serve --redis localhost:6379  Share rate-limit windows across replicas
  gridhud serve --tls-mode auto --domain hud.example.com
                                        Serve HTTPS with ACME certificates
  gridhud secret                        Generate a random shared secret
  gridhud version                       Print version
  gridhud help                          Show this help

Quick Start:
  1. gridhud secret                     # generate a secret
  2. GRIDHUD_SECRET=... gridhud serve   # start the service
  3. paste the secret into the HUD script and wear it

Environment Variables:
  GRIDHUD_SECRET          Shared signing secret (required)
  GRIDHUD_LISTEN          HTTP listen address (default: :8080)
  GRIDHUD_LISTEN_TLS      TLS listen address (default: :8443)
  GRIDHUD_TLS_MODE        TLS mode: off|auto|static (default: off)
  GRIDHUD_DOMAIN          Public hostname for ACME (tls-mode auto)
  GRIDHUD_CERT_CACHE_DIR  ACME certificate cache directory
  GRIDHUD_TLS_CERT_FILE   Certificate PEM file (tls-mode static)
  GRIDHUD_TLS_KEY_FILE    Key PEM file (tls-mode static)
  GRIDHUD_H3              Serve HTTP/3 alongside TLS (true|1)
  GRIDHUD_TOLERANCE       Timestamp drift tolerance in seconds (default: 60)
  GRIDHUD_REGISTER_LIMIT  Register requests per source per minute
  GRIDHUD_SCAN_LIMIT      Scan requests per source per minute
  GRIDHUD_MAX_SCAN_IDS    Max ids per scan request (default: 25)
  GRIDHUD_DB_PATH         SQLite path (default: in-memory registry)
  GRIDHUD_REDIS_ADDR      Redis address for a shared rate limiter
  GRIDHUD_ADMIN_KEY       Key guarding /v1/hud/list and /v1/hud/events
  GRIDHUD_RANKS_FILE      YAML affiliation table (default: everyone resident)
  GRIDHUD_LOG_LEVEL       Log level: debug|info|warn|error (default: info)
  GRIDHUD_LOG_FORMAT      Log format: text|json (default: text)
  GRIDHUD_PPROF_ADDR      pprof listen address (empty disables)

Values can also live in a .env file next to the binary.`)
}

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	if Version == "dev" {
		if desc, err := exec.Command("git", "describe", "--tags", "--always").Output(); err == nil {
			if v := strings.TrimSpace(string(desc)); v != "" {
				Version = v + "-dev"
			}
		}
	}
	// Normalize: ensure non-dev versions start with "v" (GoReleaser
	// template {{.Version}} strips the prefix while git-describe keeps it).
	if Version != "dev" && !strings.HasPrefix(Version, "v") {
		Version = "v" + Version
	}
}

func printVersion() {
	fmt.Println("gridhud", Version)
}
