// Package config loads Options from a YAML file with ${VAR} environment
// substitution, and can watch that file for changes and push reloaded
// Options to a callback. This is ambient configuration plumbing around
// the connection's Options struct (spec.md §3); the Connection itself
// only ever sees an already-validated Options value.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// TLSOptions mirrors the SSL key/cert/ca/capath/cipher/verify knobs
// spec.md §6 lists as honored configuration.
type TLSOptions struct {
	Enabled    bool   `yaml:"enabled"`
	Key        string `yaml:"key"`
	Cert       string `yaml:"cert"`
	CA         string `yaml:"ca"`
	CAPath     string `yaml:"ca_path"`
	Cipher     string `yaml:"cipher"`
	VerifyCert bool   `yaml:"verify_cert"`
}

// File is the on-disk YAML shape Load parses. CfgFile/CfgSection are
// accepted but not otherwise interpreted — the legacy my.cnf-style
// indirection spec.md documents as a no-op option.
type File struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Socket          string        `yaml:"socket"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	CharsetName     string        `yaml:"charset_name"`
	InitCommands    []string      `yaml:"init_commands"`
	LocalInfile     bool          `yaml:"local_infile"`
	NumericAndDatesAsUnicode bool `yaml:"numeric_and_dates_as_unicode"`
	NativeIntFloat  bool          `yaml:"native_int_float"`
	MultiStatements bool          `yaml:"multi_statements"`
	Compress        bool          `yaml:"compress"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	NetBufferSize   int           `yaml:"net_buffer_size"`
	TLS             TLSOptions    `yaml:"tls"`
	CfgFile         string        `yaml:"cfg_file"`
	CfgSection      string        `yaml:"cfg_section"`
}

// Redacted returns a copy of f with the password masked, safe to log.
func (f File) Redacted() File {
	c := f
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML options file with ${VAR} substitution,
// applying defaults for anything left zero.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := validate(f); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}

	applyDefaults(f)
	return f, nil
}

func applyDefaults(f *File) {
	if f.Host == "" && f.Socket == "" {
		f.Host = "127.0.0.1"
	}
	if f.Port == 0 {
		f.Port = 3306
	}
	if f.CharsetName == "" {
		f.CharsetName = "utf8mb4"
	}
	if f.ConnectTimeout == 0 {
		f.ConnectTimeout = 10 * time.Second
	}
	if f.NetBufferSize == 0 {
		f.NetBufferSize = 16 * 1024
	}
}

func validate(f *File) error {
	if f.Host == "" && f.Socket == "" {
		return nil // applyDefaults fills in Host
	}
	if f.Host != "" && f.Socket != "" {
		return fmt.Errorf("both host and socket set; exactly one transport must be chosen")
	}
	if f.TLS.Enabled && f.TLS.Cert != "" && f.TLS.Key == "" {
		return fmt.Errorf("tls: cert given without key")
	}
	return nil
}

// Watcher watches an options file for changes and calls back with the
// reloaded File, debouncing rapid successive writes.
type Watcher struct {
	path     string
	callback func(*File)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a Watcher on path, starting its background loop.
func NewWatcher(path string, callback func(*File)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	f, err := Load(cw.path)
	if err != nil {
		slog.Error("config hot-reload failed", "path", cw.path, "error", err)
		return
	}

	slog.Info("config reloaded", "path", cw.path)
	cw.callback(f)
}

// Stop stops the watcher and releases its inotify/kqueue handle.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
