// Package preset keeps named conversion settings in a YAML file.
package preset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"morph/internal/converter"
	"morph/pkg/fsutil"
)

var (
	ErrNotFound = errors.New("preset not found")
	ErrInvalid  = errors.New("invalid preset")
)

// Preset is a saved target format plus options.
type Preset struct {
	Name    string            `yaml:"name"    json:"name"`
	Format  converter.Format  `yaml:"format"  json:"format"`
	Options converter.Options `yaml:"options" json:"options"`
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Store is safe for concurrent use. Every mutation rewrites the file.
type Store struct {
	path string

	mu      sync.RWMutex
	presets map[string]Preset
}

// Open loads the presets at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, presets: make(map[string]Preset)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for _, p := range f.Presets {
		s.presets[p.Name] = p
	}
	return s, nil
}

// List returns every preset ordered by name.
func (s *Store) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preset, 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Get(name string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Save adds or replaces the preset with p.Name.
func (s *Store) Save(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !p.Format.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalid, converter.ErrUnsupportedFormat, p.Format)
	}
	if err := p.Options.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.presets[p.Name]
	s.presets[p.Name] = p
	if err := s.flushLocked(); err != nil {
		if existed {
			s.presets[p.Name] = prev
		} else {
			delete(s.presets, p.Name)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.presets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.presets, name)
	if err := s.flushLocked(); err != nil {
		s.presets[name] = prev
		return err
	}
	return nil
}

func (s *Store) flushLocked() error {
	f := file{Presets: make([]Preset, 0, len(s.presets))}
	for _, p := range s.presets {
		f.Presets = append(f.Presets, p)
	}
	sort.Slice(f.Presets, func(i, j int) bool { return f.Presets[i].Name < f.Presets[j].Name })

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	return nil
}
