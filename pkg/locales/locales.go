// Package locales provides a YAML-backed localisation store for command
// names, descriptions and response strings.
//
// Each locale lives in its own file ("en-US.yaml") mapping flat string
// keys ("ping.description") to translated text. Lookups fall back to
// the default locale, then to the key itself so a missing translation
// stays visible instead of blank.
package locales

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds the loaded locale tables.
type Store struct {
	mu            sync.RWMutex
	tables        map[string]map[string]string
	defaultLocale string
}

// NewStore creates an empty store with the given fallback locale.
func NewStore(defaultLocale string) *Store {
	if defaultLocale == "" {
		defaultLocale = "en-US"
	}
	return &Store{
		tables:        make(map[string]map[string]string),
		defaultLocale: defaultLocale,
	}
}

// LoadDir loads every "*.yaml" file in dir as a locale named after the
// file. A missing directory is not an error; the store stays empty.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading locales dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		locale := strings.TrimSuffix(name, ".yaml")
		if err := s.LoadFile(locale, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads one locale table from a YAML file.
func (s *Store) LoadFile(locale, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading locale file %s: %w", path, err)
	}

	table := make(map[string]string)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("parsing locale file %s: %w", path, err)
	}

	s.mu.Lock()
	s.tables[locale] = table
	s.mu.Unlock()
	return nil
}

// Set stores a single translation, mainly for tests and programmatic
// registration.
func (s *Store) Set(locale, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[locale]
	if !ok {
		table = make(map[string]string)
		s.tables[locale] = table
	}
	table[key] = value
}

// Get looks up key in locale, falling back to the default locale and
// finally to the key itself.
func (s *Store) Get(locale, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if table, ok := s.tables[locale]; ok {
		if v, ok := table[key]; ok {
			return v
		}
	}
	if table, ok := s.tables[s.defaultLocale]; ok {
		if v, ok := table[key]; ok {
			return v
		}
	}
	return key
}

// Getf looks up key and formats the result with args.
func (s *Store) Getf(locale, key string, args ...any) string {
	return fmt.Sprintf(s.Get(locale, key), args...)
}

// All returns every translation of key across loaded locales, keyed by
// locale name. Used to build the localisation maps sent with command
// declarations.
func (s *Store) All(key string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	for locale, table := range s.tables {
		if v, ok := table[key]; ok {
			out[locale] = v
		}
	}
	return out
}

// Locales returns the loaded locale names.
func (s *Store) Locales() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for locale := range s.tables {
		names = append(names, locale)
	}
	return names
}
