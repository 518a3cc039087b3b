package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/helewild/gridhud/internal/config"
	"github.com/helewild/gridhud/internal/domain"
	"github.com/helewild/gridhud/internal/ratelimit"
	"github.com/helewild/gridhud/internal/registry"
	"github.com/helewild/gridhud/internal/store/sqlite"
)

func TestBuildClassifier(t *testing.T) {
	t.Run("static default", func(t *testing.T) {
		c, err := buildClassifier(config.ServerConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Classify("abc", "Rex"); got != registry.DefaultLabel {
			t.Fatalf("expected %q, got %q", registry.DefaultLabel, got)
		}
	})

	t.Run("ranks file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ranks.yml")
		table := "default: visitor\nsubjects:\n  abc: staff\n"
		if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
			t.Fatal(err)
		}

		c, err := buildClassifier(config.ServerConfig{RanksFile: path})
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Classify("abc", "Rex"); got != "staff" {
			t.Fatalf("expected staff, got %q", got)
		}
		if got := c.Classify("zzz", "Ana"); got != "visitor" {
			t.Fatalf("expected visitor, got %q", got)
		}
	})

	t.Run("missing ranks file", func(t *testing.T) {
		_, err := buildClassifier(config.ServerConfig{RanksFile: "/nonexistent/ranks.yml"})
		if err == nil {
			t.Fatal("expected error for missing ranks file")
		}
	})
}

func TestBuildStoreMemory(t *testing.T) {
	store, closeStore, err := buildStore(config.ServerConfig{}, registry.NewStatic(""))
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()

	if _, ok := store.(*registry.Memory); !ok {
		t.Fatalf("expected in-memory store, got %T", store)
	}
}

func TestBuildStoreSQLite(t *testing.T) {
	cfg := config.ServerConfig{DBPath: filepath.Join(t.TempDir(), "hud.db")}
	store, closeStore, err := buildStore(cfg, registry.NewStatic(""))
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()

	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	// Prove the database actually opened.
	now := time.Now()
	sub, err := store.Upsert(context.Background(), domain.Registration{ID: "abc", Name: "Rex"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Name != "Rex" {
		t.Fatalf("expected Rex, got %q", sub.Name)
	}
}

func TestBuildLimiter(t *testing.T) {
	if _, ok := buildLimiter(config.ServerConfig{RateWindow: time.Minute}).(*ratelimit.Memory); !ok {
		t.Fatal("expected in-memory limiter without a redis address")
	}
	cfg := config.ServerConfig{RedisAddr: "localhost:6379", RateWindow: time.Minute}
	if _, ok := buildLimiter(cfg).(*ratelimit.Redis); !ok {
		t.Fatal("expected redis limiter with a redis address")
	}
}
