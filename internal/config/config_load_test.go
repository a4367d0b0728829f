package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoad_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("capture-report", nil, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("Load() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.OutputDirectory != cfg.Directory {
		t.Errorf("Load() OutputDirectory = %v, want %v", cfg.OutputDirectory, cfg.Directory)
	}
	if cfg.DraftDB != filepath.Join(cfg.Directory, ".capture-report", "draft.db") {
		t.Errorf("Load() DraftDB = %v", cfg.DraftDB)
	}
	if cfg.FontName != "" {
		t.Errorf("Load() FontName = %v, want empty", cfg.FontName)
	}
}

func TestLoad_ValidFlags(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantMode     string
		wantHost     string
		wantPort     int
		wantLogLevel string
		wantQuality  int
	}{
		{
			name:         "stdio mode with custom directory",
			args:         nil,
			wantMode:     "stdio",
			wantHost:     "127.0.0.1",
			wantPort:     8080,
			wantLogLevel: "info",
			wantQuality:  80,
		},
		{
			name:         "server mode with custom host and port",
			args:         []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			wantMode:     "server",
			wantHost:     "0.0.0.0",
			wantPort:     9090,
			wantLogLevel: "info",
			wantQuality:  80,
		},
		{
			name:         "web mode",
			args:         []string{"--mode", "web"},
			wantMode:     "web",
			wantHost:     "127.0.0.1",
			wantPort:     8080,
			wantLogLevel: "info",
			wantQuality:  80,
		},
		{
			name:         "debug logging and quality",
			args:         []string{"--loglevel=DEBUG", "--jpeg-quality=90"},
			wantMode:     "stdio",
			wantHost:     "127.0.0.1",
			wantPort:     8080,
			wantLogLevel: "debug",
			wantQuality:  90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--dir=" + dir}, tt.args...)

			cfg, err := Load("capture-report", args, io.Discard)
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			if cfg.Mode != tt.wantMode {
				t.Errorf("Load() Mode = %v, want %v", cfg.Mode, tt.wantMode)
			}
			if cfg.Host != tt.wantHost {
				t.Errorf("Load() Host = %v, want %v", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Load() Port = %v, want %v", cfg.Port, tt.wantPort)
			}
			if cfg.LogLevel != tt.wantLogLevel {
				t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, tt.wantLogLevel)
			}
			if cfg.JPEGQuality != tt.wantQuality {
				t.Errorf("Load() JPEGQuality = %v, want %v", cfg.JPEGQuality, tt.wantQuality)
			}
			if cfg.Directory != dir {
				t.Errorf("Load() Directory = %v, want %v", cfg.Directory, dir)
			}
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports")

	t.Setenv("CAPTURE_REPORT_MODE", "web")
	t.Setenv("CAPTURE_REPORT_HOST", "192.168.1.1")
	t.Setenv("CAPTURE_REPORT_PORT", "3000")
	t.Setenv("CAPTURE_REPORT_DIR", dir)
	t.Setenv("CAPTURE_REPORT_OUTPUT_DIR", out)
	t.Setenv("CAPTURE_REPORT_LOGLEVEL", "warn")
	t.Setenv("CAPTURE_REPORT_MAX_IMAGE_DIMENSION", "1024")
	t.Setenv("CAPTURE_REPORT_DRAFT_DB", "off")
	t.Setenv("CAPTURE_REPORT_TIMEZONE", "UTC")

	cfg, err := Load("capture-report", nil, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "web" {
		t.Errorf("Load() Mode = %v, want %v", cfg.Mode, "web")
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("Load() Host = %v, want %v", cfg.Host, "192.168.1.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.OutputDirectory != out {
		t.Errorf("Load() OutputDirectory = %v, want %v", cfg.OutputDirectory, out)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxImageDimension != 1024 {
		t.Errorf("Load() MaxImageDimension = %v, want %v", cfg.MaxImageDimension, 1024)
	}
	if cfg.DraftsEnabled() {
		t.Error("Load() expected drafts to be disabled")
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Load() Timezone = %v, want UTC", cfg.Timezone)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CAPTURE_REPORT_PORT", "3000")

	cfg, err := Load("capture-report", []string{"--dir=" + dir, "--port=4000"}, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, 4000)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "capture-report.yaml")
	content := "mode: web\nport: 8181\njpeg-quality: 70\nfont-script: JA\ndir: " + dir + "\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("capture-report", []string{"--config=" + file}, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "web" || cfg.Port != 8181 || cfg.JPEGQuality != 70 || cfg.FontScript != "JA" {
		t.Errorf("Load() did not apply config file: %s", cfg)
	}
	if cfg.ConfigFile != file {
		t.Errorf("Load() ConfigFile = %v, want %v", cfg.ConfigFile, file)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{name: "invalid mode", args: []string{"--mode=invalid"}},
		{name: "invalid port", args: []string{"--mode=server", "--port=0"}},
		{name: "unknown flag", args: []string{"--unknown"}},
		{name: "missing config file", args: []string{"--config=" + filepath.Join(dir, "missing.yaml")}},
		{name: "invalid quality", args: []string{"--jpeg-quality=0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--dir=" + dir}, tt.args...)
			if _, err := Load("capture-report", args, io.Discard); err == nil {
				t.Error("Load() expected error but got none")
			}
		})
	}
}

func TestLoad_Version(t *testing.T) {
	_, err := Load("capture-report", []string{"--version"}, io.Discard)
	if !errors.Is(err, ErrVersionRequested) {
		t.Errorf("Load() error = %v, want %v", err, ErrVersionRequested)
	}
}

func TestLoadWithFlags(t *testing.T) {
	dir := t.TempDir()

	var name *string
	cfg, fs, err := LoadWithFlags("report_generate", []string{"--dir=" + dir, "--capturer-name=Taro", "--timezone=UTC"}, io.Discard, func(fs *pflag.FlagSet) {
		name = fs.String("capturer-name", "", "Capturer name")
	})
	if err != nil {
		t.Fatalf("LoadWithFlags() unexpected error: %v", err)
	}
	if *name != "Taro" {
		t.Errorf("LoadWithFlags() capturer-name = %v, want %v", *name, "Taro")
	}
	if !fs.Changed("capturer-name") {
		t.Error("LoadWithFlags() flag set should report capturer-name as changed")
	}
	if cfg.Directory != dir {
		t.Errorf("LoadWithFlags() Directory = %v, want %v", cfg.Directory, dir)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("LoadWithFlags() Timezone = %v, want %v", cfg.Timezone, "UTC")
	}

	if _, _, err := LoadWithFlags("report_generate", []string{"--dir=" + dir, "--capturer-name=x"}, io.Discard, nil); err == nil {
		t.Error("LoadWithFlags() expected error for an undefined flag")
	}
}
