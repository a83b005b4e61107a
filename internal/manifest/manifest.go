// Package manifest reads release descriptions written by hand in TOML or
// YAML and turns them into publishable drafts.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"arclight-go/internal/arclight"
	"arclight-go/internal/fs"
)

// Manifest describes one release. File paths are relative to the manifest.
//
//	kind = "album"
//	title = "Night Drive"
//	genre = "Synthwave"
//	price = 9
//	cover = "cover.jpg"
//	tracks_dir = "tracks"
type Manifest struct {
	Kind        string  `toml:"kind" yaml:"kind"`
	Title       string  `toml:"title" yaml:"title"`
	Description string  `toml:"description" yaml:"description"`
	Genre       string  `toml:"genre" yaml:"genre"`
	Category    string  `toml:"category" yaml:"category"`
	Podcast     string  `toml:"podcast" yaml:"podcast"`
	Price       float64 `toml:"price" yaml:"price"`
	Duration    float64 `toml:"duration" yaml:"duration"`

	Cover            string `toml:"cover" yaml:"cover"`
	CoverContentType string `toml:"cover_content_type" yaml:"cover_content_type"`

	// File is the media payload of single, podcast and sound effect releases.
	File        string `toml:"file" yaml:"file"`
	ContentType string `toml:"content_type" yaml:"content_type"`

	// Albums list Tracks explicitly or point TracksDir at a directory of
	// audio files taken in name order.
	Tracks    []Track `toml:"tracks" yaml:"tracks"`
	TracksDir string  `toml:"tracks_dir" yaml:"tracks_dir"`

	dir string
}

// Track is one album entry.
type Track struct {
	Title       string  `toml:"title" yaml:"title"`
	File        string  `toml:"file" yaml:"file"`
	ContentType string  `toml:"content_type" yaml:"content_type"`
	Price       float64 `toml:"price" yaml:"price"`
	Duration    float64 `toml:"duration" yaml:"duration"`
}

// Format selects the manifest syntax.
type Format int

const (
	TOML Format = iota
	YAML
)

// FormatFor picks the format from a file extension. Unknown extensions are
// read as TOML, the format of the rest of the configuration.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return TOML
	}
}

// Decode parses a manifest. Unknown keys are errors so typos surface before
// anything is uploaded.
func Decode(r io.Reader, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decoding manifest: empty document")
			}
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}
	default:
		md, err := toml.NewDecoder(r).Decode(&m)
		if err != nil {
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decoding manifest: unknown key %q", undecoded[0].String())
		}
	}
	return &m, nil
}

// ReadFile decodes the manifest at path; relative media paths resolve
// against its directory.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Decode(bytes.NewReader(data), FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving manifest directory: %w", err)
	}
	m.dir = abs
	return m, nil
}

// ReleaseKind returns the manifest kind, checked against want when want is
// set. An empty manifest kind takes want.
func (m *Manifest) ReleaseKind(want arclight.ReleaseKind) (arclight.ReleaseKind, error) {
	if m.Kind == "" {
		if want == "" {
			return "", fmt.Errorf("manifest does not name a release kind")
		}
		return want, nil
	}
	kind, err := arclight.ParseReleaseKind(m.Kind)
	if err != nil {
		return "", err
	}
	if want != "" && kind != want {
		return "", fmt.Errorf("manifest describes a %s release, not %s", kind, want)
	}
	return kind, nil
}

// Release loads every referenced file and assembles the draft. want is the
// kind the caller intends to publish, or empty to trust the manifest.
func (m *Manifest) Release(loader *fs.MediaLoader, want arclight.ReleaseKind) (*arclight.Release, error) {
	kind, err := m.ReleaseKind(want)
	if err != nil {
		return nil, err
	}
	d, err := arclight.Descriptor(kind)
	if err != nil {
		return nil, err
	}
	if m.Cover == "" {
		return nil, fmt.Errorf("manifest has no cover")
	}

	cover, err := loader.Load(m.path(m.Cover), m.CoverContentType)
	if err != nil {
		return nil, fmt.Errorf("loading cover: %w", err)
	}

	r := &arclight.Release{
		Kind:        kind,
		Title:       m.Title,
		Description: m.Description,
		Genre:       m.Genre,
		Category:    m.Category,
		Podcast:     m.Podcast,
		Price:       m.Price,
		Duration:    m.Duration,
		Cover:       cover,
	}

	tracks, err := m.trackList(loader, d.MultiTrack)
	if err != nil {
		return nil, err
	}
	for i, t := range tracks {
		media, err := loader.Load(m.path(t.File), t.ContentType)
		if err != nil {
			return nil, fmt.Errorf("loading track %d: %w", i+1, err)
		}
		r.Tracks = append(r.Tracks, arclight.Track{
			Title:    t.Title,
			Price:    t.Price,
			Duration: t.Duration,
			Media:    media,
		})
	}
	if r.Duration == 0 {
		for _, t := range r.Tracks {
			r.Duration += t.Duration
		}
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return r, nil
}

func (m *Manifest) trackList(loader *fs.MediaLoader, multi bool) ([]Track, error) {
	if !multi {
		if len(m.Tracks) > 0 || m.TracksDir != "" {
			return nil, fmt.Errorf("only albums take tracks; use file")
		}
		if m.File == "" {
			return nil, fmt.Errorf("manifest has no media file")
		}
		return []Track{{Title: m.Title, File: m.File, ContentType: m.ContentType, Price: m.Price, Duration: m.Duration}}, nil
	}

	if m.File != "" {
		return nil, fmt.Errorf("albums take tracks, not file")
	}
	if len(m.Tracks) > 0 && m.TracksDir != "" {
		return nil, fmt.Errorf("set tracks or tracks_dir, not both")
	}
	if m.TracksDir == "" {
		for i, t := range m.Tracks {
			if t.File == "" {
				return nil, fmt.Errorf("track %d has no file", i+1)
			}
			if t.Title == "" {
				m.Tracks[i].Title = TitleFromFile(t.File)
			}
		}
		return m.Tracks, nil
	}

	files, err := loader.FindTracks(m.path(m.TracksDir))
	if err != nil {
		return nil, fmt.Errorf("finding tracks: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files in %s", m.TracksDir)
	}
	tracks := make([]Track, len(files))
	for i, f := range files {
		tracks[i] = Track{Title: TitleFromFile(f), File: f}
	}
	return tracks, nil
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// TitleFromFile derives a track title from a file name, dropping the
// extension and a leading "NN - " or "NN. " track number.
func TitleFromFile(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	trimmed := strings.TrimLeft(name, "0123456789")
	if trimmed != name {
		rest := strings.TrimLeft(trimmed, " .-_")
		if rest != "" && rest != trimmed {
			return rest
		}
	}
	return name
}
