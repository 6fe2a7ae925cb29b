package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/config"
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/event"
	"github.com/Iron-Ham/wheatley/internal/logging"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "wheatley" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "wheatley")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"ring", "config", "logs", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestResolveTowerID(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		args       []string
		want       int
		wantErr    bool
	}{
		{"from args", 0, []string{"123456789"}, 123456789, false},
		{"args override config", 111, []string{"222"}, 222, false},
		{"from config", 987654321, nil, 987654321, false},
		{"missing", 0, nil, 0, true},
		{"not a number", 0, []string{"abc"}, 0, true},
		{"negative", 0, []string{"-5"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTowerID(tt.configured, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveTowerID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error should match ErrInvalidInput: %v", err)
			}
			if tt.name == "not a number" && !errors.Is(err, strconv.ErrSyntax) {
				t.Errorf("error should keep the parse failure: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveTowerID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGeneratorFor(t *testing.T) {
	t.Run("plain hunt follows tower", func(t *testing.T) {
		gen, err := generatorFor(config.MethodConfig{Name: config.MethodPlainHunt})
		if err != nil {
			t.Fatalf("generatorFor() error = %v", err)
		}
		for _, stage := range []int{5, 8} {
			g, err := gen(stage)
			if err != nil {
				t.Fatalf("gen(%d) error = %v", stage, err)
			}
			if g.Stage() != stage {
				t.Errorf("gen(%d).Stage() = %d", stage, g.Stage())
			}
		}
	})

	t.Run("plain hunt with fixed stage", func(t *testing.T) {
		gen, err := generatorFor(config.MethodConfig{Name: config.MethodPlainHunt, Stage: 6})
		if err != nil {
			t.Fatalf("generatorFor() error = %v", err)
		}
		if _, err := gen(8); !errors.Is(err, errors.ErrStageMismatch) {
			t.Errorf("gen(8) error = %v, want ErrStageMismatch", err)
		}
	})

	t.Run("place notation", func(t *testing.T) {
		gen, err := generatorFor(config.MethodConfig{
			Name:          config.MethodPlaceNotation,
			PlaceNotation: "x16x16x16,12",
			Stage:         6,
			Bob:           "14",
			Single:        "1234",
		})
		if err != nil {
			t.Fatalf("generatorFor() error = %v", err)
		}
		g, err := gen(6)
		if err != nil {
			t.Fatalf("gen(6) error = %v", err)
		}
		if got := g.NextRow(true).String(); got != "214365" {
			t.Errorf("first row = %s, want 214365", got)
		}
	})

	t.Run("bad place notation", func(t *testing.T) {
		_, err := generatorFor(config.MethodConfig{Name: config.MethodPlaceNotation, PlaceNotation: "x1y", Stage: 6})
		if !errors.Is(err, errors.ErrInvalidPlaceNotation) {
			t.Errorf("generatorFor() error = %v, want ErrInvalidPlaceNotation", err)
		}
	})
}

func TestNewSessionLogger(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		logger, err := newSessionLogger(config.LoggingConfig{Enabled: false})
		if err != nil || logger == nil {
			t.Fatalf("newSessionLogger() = %v, %v", logger, err)
		}
	})

	t.Run("writes to dir", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := newSessionLogger(config.LoggingConfig{Enabled: true, Level: "info", Dir: dir})
		if err != nil {
			t.Fatalf("newSessionLogger() error = %v", err)
		}
		logger.Info("hello")
		if err := logger.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, logging.FileName))
		if err != nil {
			t.Fatalf("reading log: %v", err)
		}
		if !strings.Contains(string(data), "hello") {
			t.Errorf("log = %q, want it to contain hello", data)
		}
	})
}

func TestDescribeEvent(t *testing.T) {
	at := time.Unix(0, 0)
	tests := []struct {
		name  string
		event event.Event
		want  string
	}{
		{"row", event.NewRowStartedEvent(3, bell.Rounds(4), bell.Backstroke, true, at), "    3B  1234"},
		{"call", event.NewCallEvent("Go", at), "call: Go"},
		{"state", event.NewRingingChangedEvent("changes", at), "ringing: changes"},
		{"size", event.NewSizeChangedEvent(8, at), "tower now has 8 bells"},
		{"assigned", event.NewUserAssignedEvent(bell.FromNumber(2), "ann", at), "bell 2: ann"},
		{"unassigned", event.NewUserAssignedEvent(bell.FromNumber(2), "", at), "bell 2 unassigned"},
		{"clean disconnect", event.NewDisconnectedEvent(nil, at), "disconnected"},
		{"strike is quiet", event.NewBellRungEvent(bell.FromNumber(1), bell.Handstroke, at), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeEvent(tt.event); got != tt.want {
				t.Errorf("describeEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintEvents(t *testing.T) {
	bus := event.NewBus(nil)
	var buf bytes.Buffer

	unsubscribe := printEvents(&buf, bus)
	bus.Publish(event.NewCallEvent("Look to", time.Unix(0, 0)))
	bus.Publish(event.NewBellRungEvent(bell.FromNumber(1), bell.Handstroke, time.Unix(0, 0)))
	unsubscribe()
	bus.Publish(event.NewCallEvent("Stand next", time.Unix(0, 0)))

	if got := buf.String(); got != "call: Look to\n" {
		t.Errorf("output = %q, want only the Look to call", got)
	}
}

func TestRinger_Run(t *testing.T) {
	newRinger := func(url string, attempts int) *ringer {
		cfg := config.Default()
		cfg.Tower.URL = url
		cfg.Tower.ReconnectAttempts = attempts
		return &ringer{
			cfg:     cfg,
			towerID: 123,
			bus:     event.NewBus(nil),
			logger:  logging.NopLogger(),
			client:  http.DefaultClient,
			retry:   time.Millisecond,
		}
	}

	t.Run("missing tower is not retried", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		err := newRinger(srv.URL, 3).run(context.Background())
		if !errors.Is(err, errors.ErrServerIPNotFound) {
			t.Errorf("run() error = %v, want ErrServerIPNotFound", err)
		}
		if got := requests.Load(); got != 1 {
			t.Errorf("requests = %d, want 1", got)
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := newRinger(srv.URL, 2).run(context.Background())
		if err == nil {
			t.Fatal("run() should fail once attempts are used up")
		}
		if got := requests.Load(); got != 3 {
			t.Errorf("requests = %d, want 3", got)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := newRinger("http://127.0.0.1:1", 3).run(ctx); err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	})
}

func TestJoinError(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")

	t.Run("dial deadline", func(t *testing.T) {
		dialCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-dialCtx.Done()

		err := joinError(context.Background(), dialCtx, 10*time.Second, cause)
		if !errors.Is(err, errors.ErrTimeout) {
			t.Fatalf("joinError() = %v, want ErrTimeout", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("joinError() should keep the cause: %v", err)
		}
		if !errors.IsRetryable(err) {
			t.Error("a timed out join should be retried")
		}
		if got := errors.GetSeverity(err); got != errors.SeverityWarning {
			t.Errorf("GetSeverity() = %v, want warning", got)
		}
	})

	t.Run("session cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dialCtx, dialCancel := context.WithTimeout(ctx, time.Nanosecond)
		defer dialCancel()
		<-dialCtx.Done()

		if err := joinError(ctx, dialCtx, time.Second, cause); err != cause {
			t.Errorf("joinError() = %v, want the cause unchanged", err)
		}
	})

	t.Run("other failure", func(t *testing.T) {
		if err := joinError(context.Background(), context.Background(), time.Second, cause); err != cause {
			t.Errorf("joinError() = %v, want the cause unchanged", err)
		}
	})
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"tower.id", "123456789", 123456789, false},
		{"tower.id", "abc", nil, true},
		{"rhythm.inertia", "0.25", 0.25, false},
		{"rhythm.inertia", "fast", nil, true},
		{"method.up_down_in", "false", false, false},
		{"method.up_down_in", "no", nil, true},
		{"method.name", "place_notation", "place_notation", false},
		{"nope.key", "1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseConfigValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettableKeysMatchDefaults(t *testing.T) {
	config.SetDefaults()
	for key := range settableKeys {
		if !viper.IsSet(key) {
			t.Errorf("settable key %q has no default", key)
		}
	}
}

func TestConfigTemplateIsValid(t *testing.T) {
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(configTemplate), &cfg); err != nil {
		t.Fatalf("template is not valid YAML: %v", err)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("template config is invalid: %v", errs)
	}
	if cfg != *config.Default() {
		t.Errorf("template = %+v, want defaults %+v", cfg, *config.Default())
	}
}

func TestWriteConfigYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeConfigYAML(&buf, config.Default()); err != nil {
		t.Fatalf("writeConfigYAML() error = %v", err)
	}
	for _, want := range []string{"tower:", "inertia: 0.5", "name: plain_hunt", "up_down_in: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunConfigInit(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var buf bytes.Buffer
	configInitCmd.SetOut(&buf)
	defer configInitCmd.SetOut(nil)

	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatalf("runConfigInit() error = %v", err)
	}
	if _, err := os.Stat(config.ConfigFile()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.Contains(buf.String(), config.ConfigFile()) {
		t.Errorf("output should name the file: %s", buf.String())
	}

	// A second init must not overwrite it
	if err := runConfigInit(configInitCmd, nil); err == nil {
		t.Error("runConfigInit() should fail when the file exists")
	}
}

func TestResolveVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "v1.2.3"
	if got := resolveVersion(); got != "v1.2.3" {
		t.Errorf("resolveVersion() = %q, want v1.2.3", got)
	}

	Version = ""
	if got := resolveVersion(); got == "" {
		t.Error("resolveVersion() should never be empty")
	}
}
