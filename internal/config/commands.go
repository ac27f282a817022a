package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"voxdispatch/internal/domain"
)

// Commands is the parsed command file.
//
//	toggle_phrase = "type mode"
//
//	[commands]
//	"open browser" = "xdg-open https://example.com"
//	"search web"   = "xdg-open https://duckduckgo.com/?q={capture}"
type Commands struct {
	Path         string            `toml:"-"`
	TogglePhrase string            `toml:"toggle_phrase"`
	Table        map[string]string `toml:"commands"`
}

// LoadCommands reads and parses a command file. Unknown keys are rejected so
// a misspelt table name does not silently yield an empty command set.
func LoadCommands(fs afero.Fs, path string) (Commands, error) {
	if strings.TrimSpace(path) == "" {
		return Commands{}, fmt.Errorf("%w: no command file configured", domain.ErrConfig)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Commands{}, fmt.Errorf("%w: failed to read command file %q: %v", domain.ErrConfig, path, err)
	}

	var parsed Commands
	decoder := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := decoder.Decode(&parsed); err != nil {
		return Commands{}, fmt.Errorf("%w: failed to parse command file %q: %v", domain.ErrConfig, path, err)
	}

	parsed.Path = path
	parsed.TogglePhrase = strings.TrimSpace(parsed.TogglePhrase)
	if parsed.Table == nil {
		parsed.Table = map[string]string{}
	}
	return parsed, nil
}
