package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "AI_settings.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsPartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AI_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"emailSummarization": false}`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.False(t, s.EmailSummarization)
	assert.True(t, s.AIAutoCategorization)
	assert.True(t, s.SmartReplyGeneration)
}

func TestSaveSettingsKeepsCamelCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AI_settings.json")
	s := DefaultSettings()
	require.NoError(t, s.Set("smartReplyGeneration", false))
	require.NoError(t, SaveSettings(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"smartReplyGeneration": false`)

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSettingsSetUnknown(t *testing.T) {
	var s Settings
	assert.ErrorIs(t, s.Set("darkMode", true), ErrUnknownSetting)
}
