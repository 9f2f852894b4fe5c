// Package injector derives the AUT's OSGi configuration from its template
// config.ini with the remote-control agent bundle added.
package injector

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/magiconair/properties"

	"autctl/pkg/logging"
)

const subsystem = "Injector"

const (
	BundlesKey      = "osgi.bundles"
	ConfigFileName  = "config.ini"
	ConfigDirName   = "configuration"
	BundlePrefix    = "org.testeditor.agent.swtbot"
	referencePrefix = "reference:file:"
	header          = "# Changed for TestEditor run."
)

var (
	ErrTemplateNotFound    = errors.New("template config.ini not found")
	ErrAgentBundleNotFound = errors.New("agent bundle not found")
)

// Injector writes the derived configuration to
// <temp root>/configuration/config.ini and removes that directory on
// Cleanup.
type Injector struct {
	tempRoot string

	mu      sync.Mutex
	written bool
}

// Option configures an Injector.
type Option func(*Injector)

// WithTempRoot places generated configurations below dir instead of the
// system temp directory.
func WithTempRoot(dir string) Option {
	return func(i *Injector) { i.tempRoot = dir }
}

// New creates an Injector.
func New(opts ...Option) *Injector {
	i := &Injector{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the configuration directory Inject writes to.
func (i *Injector) Dir() string {
	root := i.tempRoot
	if root == "" {
		root = os.TempDir()
	}
	return filepath.Join(root, ConfigDirName)
}

// Inject loads templatePath, appends the agent bundle reference to
// osgi.bundles and writes <tmp>/configuration/config.ini. It returns the
// configuration directory to pass as -configuration.
func (i *Injector) Inject(templatePath, agentBundlePath string) (string, error) {
	bundle, err := ResolveBundle(agentBundlePath)
	if err != nil {
		return "", err
	}

	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", templatePath, err)
	}

	value := referencePrefix + bundle
	if existing, ok := props.Get(BundlesKey); ok && strings.TrimSpace(existing) != "" {
		value = existing + "," + value
	}
	if _, _, err := props.Set(BundlesKey, value); err != nil {
		return "", fmt.Errorf("set %s: %w", BundlesKey, err)
	}

	dir := i.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	i.mu.Lock()
	i.written = true
	i.mu.Unlock()

	target := filepath.Join(dir, ConfigFileName)
	if err := writeConfig(target, props); err != nil {
		return "", err
	}

	logging.Info(subsystem, "Wrote %s with agent bundle %s", target, bundle)
	return dir, nil
}

func writeConfig(path string, props *properties.Properties) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, header); err != nil {
		f.Close()
		return err
	}
	if _, err := props.Write(w, properties.UTF8); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Cleanup removes the configuration directory if Inject wrote it.
func (i *Injector) Cleanup() error {
	i.mu.Lock()
	written := i.written
	i.written = false
	i.mu.Unlock()
	if !written {
		return nil
	}

	dir := i.Dir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	logging.Debug(subsystem, "Removed %s", dir)
	return nil
}

// ResolveBundle returns path unchanged for a bundle file. For a directory,
// as used when developing the agent, it returns the first entry of
// <dir>/target whose name starts with the agent bundle prefix.
func ResolveBundle(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: no path configured", ErrAgentBundleNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAgentBundleNotFound, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	targetDir := filepath.Join(path, "target")
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAgentBundleNotFound, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), BundlePrefix) {
			return filepath.Join(targetDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %s* in %s", ErrAgentBundleNotFound, BundlePrefix, targetDir)
}

// LookupTemplate finds the config.ini that ships with executable, either
// next to it or three levels up for macOS bundle layouts.
func LookupTemplate(executable string) (string, error) {
	dir := filepath.Dir(executable)
	candidates := []string{
		filepath.Join(dir, ConfigDirName, ConfigFileName),
		filepath.Join(dir, "..", "..", "..", ConfigDirName, ConfigFileName),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return filepath.Clean(c), nil
		}
	}
	return "", fmt.Errorf("%w: looked in %s", ErrTemplateNotFound, strings.Join(candidates, ", "))
}
