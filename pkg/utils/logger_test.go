package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug, zap.String("service", "genomesearch"))
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", debug, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%v) returned nil logger", debug)
		}
		if got := logger.Core().Enabled(zap.DebugLevel); got != debug {
			t.Errorf("NewLogger(%v): debug enabled = %v", debug, got)
		}
		_ = logger.Sync()
	}
}

func TestBuildLogger_fields(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{out}
	logger, err := buildLogger(cfg, []zap.Field{zap.String("service", "genomesearch"), zap.String("version", "1.2.0")})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("index built", zap.String("key", "1_2_3"))
	_ = logger.Sync()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	for k, want := range map[string]string{"msg": "index built", "service": "genomesearch", "version": "1.2.0", "key": "1_2_3"} {
		if entry[k] != want {
			t.Errorf("%s = %v, want %q", k, entry[k], want)
		}
	}
}
