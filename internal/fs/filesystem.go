package fs

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"arclight-go/internal/arclight"
)

// MaxMediaSize bounds a single media file read into memory.
const MaxMediaSize = 512 << 20

// IgnoreFile holds per-directory patterns excluded from track discovery.
const IgnoreFile = ".arclightignore"

// MediaLoader reads release artwork and audio from the local filesystem.
type MediaLoader struct {
	maxSize int64
}

// NewMediaLoader creates a loader that refuses files larger than MaxMediaSize.
func NewMediaLoader() *MediaLoader {
	return &MediaLoader{maxSize: MaxMediaSize}
}

// Resolve validates a raw path and returns its absolute form.
// Only regular files and directories are accepted.
func (m *MediaLoader) Resolve(rawPath string) (string, fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return "", nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets not supported: %s", absPath)
	}
	return absPath, info, nil
}

// Load reads a media file and determines its content type. An explicit
// contentType overrides detection.
func (m *MediaLoader) Load(rawPath, contentType string) (arclight.Media, error) {
	path, info, err := m.Resolve(rawPath)
	if err != nil {
		return arclight.Media{}, err
	}
	if info.IsDir() {
		return arclight.Media{}, fmt.Errorf("cannot load directory as media: %s", path)
	}
	if info.Size() == 0 {
		return arclight.Media{}, fmt.Errorf("media file is empty: %s", path)
	}
	if info.Size() > m.maxSize {
		return arclight.Media{}, fmt.Errorf("media file %s is %d bytes, limit is %d", path, info.Size(), m.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return arclight.Media{}, fmt.Errorf("reading media: %w", err)
	}
	if contentType == "" {
		contentType = DetectContentType(path, data)
	}
	return arclight.Media{Data: data, ContentType: contentType}, nil
}

// DetectContentType guesses a MIME type from the file extension, falling
// back to sniffing the first bytes of data.
func DetectContentType(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}

// audioTypes pins audio extensions whose system mime.types entries vary.
var audioTypes = map[string]string{
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
}

// IsAudio reports whether a file name carries a known audio extension.
func IsAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := audioTypes[ext]; ok {
		return true
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "audio/")
}

// FindTracks lists the audio files directly inside dir, sorted by name, so a
// directory of "01 - ...", "02 - ..." files becomes an album in track order.
// Patterns from the directory's IgnoreFile are applied first.
func (m *MediaLoader) FindTracks(dir string) ([]string, error) {
	path, info, err := m.Resolve(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path)
	}

	patterns, err := ParseIgnoreFile(filepath.Join(path, IgnoreFile))
	if err != nil {
		return nil, err
	}
	ignore := NewIgnoreMatcher(patterns)

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var tracks []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ignore.Match(entry.Name()) || !IsAudio(entry.Name()) {
			continue
		}
		tracks = append(tracks, filepath.Join(path, entry.Name()))
	}
	sort.Strings(tracks)
	return tracks, nil
}
