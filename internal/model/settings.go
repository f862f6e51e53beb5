package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/nhle/mailsync/internal/fsutil"
)

// Settings holds the feature flags shared with the dashboard and the
// enrichment process.
type Settings struct {
	// EmailSummarization gates the enrichment trigger after a sync.
	EmailSummarization bool `mapstructure:"emailSummarization" json:"emailSummarization"`

	AIAutoCategorization bool `mapstructure:"aiAutoCategorization" json:"aiAutoCategorization"`
	SmartReplyGeneration bool `mapstructure:"smartReplyGeneration" json:"smartReplyGeneration"`
}

// DefaultSettings enables every feature.
func DefaultSettings() Settings {
	return Settings{
		EmailSummarization:   true,
		AIAutoCategorization: true,
		SmartReplyGeneration: true,
	}
}

// ErrUnknownSetting is returned by Settings.Set for an unrecognized flag.
var ErrUnknownSetting = errors.New("unknown setting")

// Set assigns a flag by its document name (case-insensitive).
func (s *Settings) Set(name string, value bool) error {
	switch strings.ToLower(name) {
	case "emailsummarization":
		s.EmailSummarization = value
	case "aiautocategorization":
		s.AIAutoCategorization = value
	case "smartreplygeneration":
		s.SmartReplyGeneration = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	return nil
}

// LoadSettings reads the settings document at path. A missing file yields
// DefaultSettings; absent keys keep their defaults.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	defaults := DefaultSettings()
	v.SetDefault("emailSummarization", defaults.EmailSummarization)
	v.SetDefault("aiAutoCategorization", defaults.AIAutoCategorization)
	v.SetDefault("smartReplyGeneration", defaults.SmartReplyGeneration)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return defaults, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("reading settings %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return defaults, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes the settings document atomically. Viper lower-cases
// keys on write, so the document is encoded directly to keep the camelCase
// names the other readers expect.
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if _, err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data, 0o644); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}
