package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.WorkerCount != 2 {
		t.Errorf("Expected worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.MaxJobsPerWorker != 50 {
		t.Errorf("Expected 50 jobs per worker, got %d", cfg.MaxJobsPerWorker)
	}
	if cfg.SoftTimeLimit != 540*time.Second {
		t.Errorf("Expected soft time limit 540s, got %s", cfg.SoftTimeLimit)
	}
	if cfg.HardTimeLimit != 600*time.Second {
		t.Errorf("Expected hard time limit 600s, got %s", cfg.HardTimeLimit)
	}
	if cfg.ResultTTL != time.Hour {
		t.Errorf("Expected result TTL 1h, got %s", cfg.ResultTTL)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("Expected fetch timeout 30s, got %s", cfg.FetchTimeout)
	}
	if cfg.MaxDeliveries != 3 {
		t.Errorf("Expected 3 deliveries, got %d", cfg.MaxDeliveries)
	}
}

func TestParse_FlagsAndEnv(t *testing.T) {
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("API_ACCESS_KEY", "secret")

	cfg, err := parse([]string{"--role", "worker", "--soft-time-limit", "2m", "--hard-time-limit", "3m"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Role != RoleWorker {
		t.Errorf("Expected role worker, got %s", cfg.Role)
	}
	if cfg.WorkerCount != 7 {
		t.Errorf("Expected worker count 7, got %d", cfg.WorkerCount)
	}
	if cfg.APIAccessKey != "secret" {
		t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
	}
	if cfg.SoftTimeLimit != 2*time.Minute || cfg.HardTimeLimit != 3*time.Minute {
		t.Errorf("Expected limits 2m/3m, got %s/%s", cfg.SoftTimeLimit, cfg.HardTimeLimit)
	}
	if cfg.ServesHTTP() || !cfg.RunsWorkers() {
		t.Error("Expected worker role to run workers only")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string][]string{
		"unknown role":        {"--role", "scheduler"},
		"zero workers":        {"--worker-count", "0"},
		"per page too large":  {"--per-page", "101"},
		"hard before soft":    {"--soft-time-limit", "10m", "--hard-time-limit", "5m"},
		"sqlite without all":  {"--store", "sqlite", "--role", "api"},
		"zero max deliveries": {"--max-deliveries", "0"},
		"short visibility":    {"--visibility-timeout", "5m"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parse(args); err == nil {
				t.Errorf("Expected error for %v", args)
			}
		})
	}
}

func TestRoles(t *testing.T) {
	all := &Cfg{Role: RoleAll}
	if !all.ServesHTTP() || !all.RunsWorkers() {
		t.Error("Expected role all to serve HTTP and run workers")
	}

	api := &Cfg{Role: RoleAPI}
	if !api.ServesHTTP() || api.RunsWorkers() {
		t.Error("Expected role api to serve HTTP only")
	}
}
