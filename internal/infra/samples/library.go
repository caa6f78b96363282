// Package samples provides sample file resolution, decoding and caching.
package samples

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/raveforest/internal/domain/sample"
)

// Errors
var (
	ErrNotFound          = errors.New("sample not found")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// Extensions lists the supported sample file extensions in lookup order.
var Extensions = []string{".wav", ".mp3"}

// Info describes a decoded sample file.
type Info struct {
	Path       string
	Frames     int
	SampleRate beep.SampleRate
	Channels   int
	Duration   time.Duration
}

// Library decodes sample files on demand and caches the results by path.
type Library struct {
	mu      sync.RWMutex
	buffers map[string]*beep.Buffer
	infos   map[string]Info
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		buffers: make(map[string]*beep.Buffer),
		infos:   make(map[string]Info),
	}
}

// Resolve returns the file path of the sample. A name without a supported
// extension is looked up with each extension in turn.
func Resolve(ref sample.Ref) (string, error) {
	if err := sample.ValidateName(ref.Name); err != nil {
		return "", err
	}

	path := ref.Path()
	if isFile(path) {
		return path, nil
	}
	if !isSupported(path) {
		for _, ext := range Extensions {
			if isFile(path + ext) {
				return path + ext, nil
			}
		}
	}
	return "", errors.Wrapf(ErrNotFound, "%s", path)
}

// Exists reports whether the sample resolves to a file.
func Exists(ref sample.Ref) bool {
	_, err := Resolve(ref)
	return err == nil
}

// List returns the names of all supported sample files in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read samples dir %s", dir)
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && isSupported(e.Name())
	})
	sort.Strings(names)
	return names, nil
}

// Info returns the metadata of the sample, decoding only the file header.
func (l *Library) Info(ref sample.Ref) (Info, error) {
	path, err := Resolve(ref)
	if err != nil {
		return Info{}, err
	}

	l.mu.RLock()
	info, ok := l.infos[path]
	l.mu.RUnlock()
	if ok {
		return info, nil
	}

	streamer, format, err := decodeFile(path)
	if err != nil {
		return Info{}, err
	}
	defer streamer.Close()

	info = Info{
		Path:       path,
		Frames:     streamer.Len(),
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(streamer.Len()),
	}

	l.mu.Lock()
	l.infos[path] = info
	l.mu.Unlock()
	return info, nil
}

// Load returns the fully decoded sample.
func (l *Library) Load(ref sample.Ref) (*beep.Buffer, error) {
	path, err := Resolve(ref)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	buf, ok := l.buffers[path]
	l.mu.RUnlock()
	if ok {
		return buf, nil
	}

	streamer, format, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf = beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Another caller may have decoded the same file meanwhile
	if existing, ok := l.buffers[path]; ok {
		return existing, nil
	}
	l.buffers[path] = buf
	l.infos[path] = Info{
		Path:       path,
		Frames:     buf.Len(),
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(buf.Len()),
	}
	zlog.Debug().Msgf("samples: decoded: path=%s frames=%d rate=%d", path, buf.Len(), format.SampleRate)
	return buf, nil
}

// Free drops the decoded sample from the cache.
func (l *Library) Free(ref sample.Ref) bool {
	path, err := Resolve(ref)
	if err != nil {
		return false
	}
	return l.Evict(path)
}

// Evict drops every cached entry of the given file path.
func (l *Library) Evict(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, hadBuffer := l.buffers[path]
	_, hadInfo := l.infos[path]
	delete(l.buffers, path)
	delete(l.infos, path)
	return hadBuffer || hadInfo
}

// Cached returns the number of decoded samples held in memory.
func (l *Library) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buffers)
}

// Preload decodes every supported sample in dir. Files that fail to decode
// are logged and skipped.
func (l *Library) Preload(dir string) (int, error) {
	names, err := List(dir)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, name := range names {
		if _, err := l.Load(sample.Ref{Dir: dir, Name: name}); err != nil {
			zlog.Warn().Msgf("samples: failed to preload %s: %v", name, err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// decodeFile opens and decodes the file according to its extension.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to open %s", path)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", path)
	}
	return streamer, format, nil
}

func isSupported(name string) bool {
	return lo.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
