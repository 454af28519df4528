package server

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
)

func writeServerConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server-config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write server config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	for name, path := range map[string]string{
		"empty path":   "",
		"missing file": filepath.Join(t.TempDir(), "missing.yaml"),
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Address != constants.DefaultServerAddress {
				t.Errorf("address = %q, expected %q", cfg.Address, constants.DefaultServerAddress)
			}
			if cfg.UploadSizeBytes() != constants.DefaultMaxUploadSizeBytes {
				t.Errorf("upload size = %d, expected %d", cfg.UploadSizeBytes(), constants.DefaultMaxUploadSizeBytes)
			}
			if cfg.AppConfig != "" || len(cfg.AllowedOrigins) != 0 {
				t.Errorf("expected built-in presets and open CORS, got appConfig=%q origins=%v", cfg.AppConfig, cfg.AllowedOrigins)
			}
			if cfg.ShutdownTimeout != defaultShutdownTimeout {
				t.Errorf("shutdown timeout = %s, expected %s", cfg.ShutdownTimeout, defaultShutdownTimeout)
			}
		})
	}
}

func TestLoadConfigDashboardSettings(t *testing.T) {
	path := writeServerConfig(t, `address: 127.0.0.1:9000
maxUploadSize: 2M
logging:
  level: debug
  format: console
appConfig: /etc/tireintel/config.yaml
allowedOrigins:
  - https://dash.example.com
  - "  "
  - " https://fleet.example.com "
shutdownTimeout: 5s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.UploadSizeBytes() != 2*1024*1024 {
		t.Errorf("upload size = %d, expected 2M", cfg.UploadSizeBytes())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.AppConfig != "/etc/tireintel/config.yaml" {
		t.Errorf("appConfig = %q", cfg.AppConfig)
	}
	wantOrigins := []string{"https://dash.example.com", "https://fleet.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, wantOrigins) {
		t.Errorf("allowed origins = %v, expected %v", cfg.AllowedOrigins, wantOrigins)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout = %s, expected 5s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigNormalizesBlankValues(t *testing.T) {
	path := writeServerConfig(t, "address: \"\"\nmaxUploadSize: \"\"\nshutdownTimeout: -1s\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Address != constants.DefaultServerAddress {
		t.Errorf("address = %q, expected default", cfg.Address)
	}
	if cfg.UploadSizeBytes() != constants.DefaultMaxUploadSizeBytes || cfg.MaxUploadSize == "" {
		t.Errorf("upload size = %d (%q), expected default", cfg.UploadSizeBytes(), cfg.MaxUploadSize)
	}
	if cfg.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("shutdown timeout = %s, expected default", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"bad size":     "maxUploadSize: invalid",
		"bad unit":     "maxUploadSize: 4TB",
		"invalid yaml": "address: [unclosed",
	}

	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeServerConfig(t, contents)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSetUploadSizeBytes(t *testing.T) {
	cfg, _ := LoadConfig("")

	cfg.SetUploadSizeBytes(0)
	if cfg.UploadSizeBytes() != constants.DefaultMaxUploadSizeBytes {
		t.Errorf("zero override changed the limit to %d", cfg.UploadSizeBytes())
	}

	cfg.SetUploadSizeBytes(4096)
	if cfg.UploadSizeBytes() != 4096 || cfg.MaxUploadSize != "4096" {
		t.Errorf("override = %d (%q), expected 4096", cfg.UploadSizeBytes(), cfg.MaxUploadSize)
	}
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"":          constants.DefaultMaxUploadSizeBytes,
		"1024":      1024,
		"512b":      512,
		"256K":      256 * 1024,
		"64 kb":     64 * 1024,
		"1m":        1024 * 1024,
		"3MB":       3 * 1024 * 1024,
		"2G":        2 * 1024 * 1024 * 1024,
		"  4096   ": 4096,
	}

	for input, expected := range tests {
		got, err := ParseSize(input)
		if err != nil {
			t.Fatalf("ParseSize(%q) error = %v", input, err)
		}
		if got != expected {
			t.Errorf("ParseSize(%q) = %d, expected %d", input, got, expected)
		}
	}

	for _, input := range []string{"1TB", "abc", "K", "99999999999G"} {
		if _, err := ParseSize(input); err == nil {
			t.Errorf("ParseSize(%q) expected error", input)
		}
	}
}
