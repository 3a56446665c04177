package adapterinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
)

// manifestFile is the plugin descriptor shipped next to the binary.
const manifestFile = "plugin.yaml"

// Metadata is the subset of plugin.yaml the adapter reports.
type Metadata struct {
	Name      string `yaml:"name"`
	Slug      string `yaml:"slug"`
	Version   string `yaml:"version"`
	Generator string `yaml:"generator"`
}

// Info describes the current adapter.
var Info = mustLoad()

// SynthesisMetadata produces the standard metadata payload attached
// to emitted TTS audio chunks. Format fields are omitted when unknown.
func SynthesisMetadata(provider, voiceID string, f audio.Format) map[string]string {
	md := map[string]string{
		"generator": Info.Generator,
		"provider":  provider,
	}
	if voiceID != "" {
		md["voice_id"] = voiceID
	}
	if f.Container != "" {
		md["container"] = f.Container
		md["mime_type"] = f.MIMEType()
	}
	if f.Encoding != "" {
		md["encoding"] = f.Encoding
	}
	if f.SampleRate > 0 {
		md["sample_rate"] = strconv.Itoa(f.SampleRate)
	}
	if f.Channels > 0 {
		md["channels"] = strconv.Itoa(f.Channels)
	}
	return md
}

// Version returns the adapter semantic version.
func Version() string {
	return Info.Version
}

func mustLoad() Metadata {
	path, err := findManifest(searchDirs())
	if err != nil {
		panic(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("adapterinfo: %w", err))
	}
	meta, err := decodeManifest(data)
	if err != nil {
		panic(err)
	}
	return meta
}

// searchDirs lists where plugin.yaml may live: beside the executable, in
// the working directory, or at the module root when running from source.
func searchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		dirs = append(dirs, filepath.Join(filepath.Dir(file), "..", ".."))
	}
	for i := range dirs {
		dirs[i] = filepath.Clean(dirs[i])
	}
	return slices.Compact(dirs)
}

func findManifest(dirs []string) (string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, manifestFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.New("adapterinfo: " + manifestFile + " not found next to binary or source tree")
}

func decodeManifest(data []byte) (Metadata, error) {
	var doc struct {
		Metadata Metadata `yaml:"metadata"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("adapterinfo: decode manifest: %w", err)
	}

	meta := doc.Metadata
	for _, field := range []*string{&meta.Name, &meta.Slug, &meta.Version, &meta.Generator} {
		*field = strings.TrimSpace(*field)
	}
	switch {
	case meta.Version == "":
		return Metadata{}, errors.New("adapterinfo: metadata.version missing in manifest")
	case meta.Slug == "":
		return Metadata{}, errors.New("adapterinfo: metadata.slug missing in manifest")
	}
	if meta.Name == "" {
		meta.Name = meta.Slug
	}
	if meta.Generator == "" {
		meta.Generator = meta.Slug
	}
	return meta, nil
}
