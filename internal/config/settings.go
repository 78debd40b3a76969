package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/jsonc"
)

// maxRecentFolders bounds the recent-folders list
const maxRecentFolders = 10

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Folder settings
	LastFolder    string   `json:"lastFolder"`
	RecentFolders []string `json:"recentFolders"`
	RecursiveScan bool     `json:"recursiveScan"`

	// Export settings
	ExportPath        string `json:"exportPath"`
	AutoOpenExportDir bool   `json:"autoOpenExportDir"`

	// Display defaults
	DefaultColormap string  `json:"defaultColormap"` // "auto" or a colormap name
	LowPercentile   float64 `json:"lowPercentile"`
	HighPercentile  float64 `json:"highPercentile"`
	FigureSize      int     `json:"figureSize"`
	PanelSize       int     `json:"panelSize"`

	// UI preferences
	Theme           string `json:"theme"` // "light", "dark", "system"
	ShowCoordinates bool   `json:"showCoordinates"`

	// Analytics
	DisableAnalytics bool   `json:"disableAnalytics"`
	InstallID        string `json:"installId"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	exportPath := filepath.Join(homeDir, "Documents", "insar-viewer")

	return &UserSettings{
		RecentFolders:     []string{},
		ExportPath:        exportPath,
		AutoOpenExportDir: true,
		DefaultColormap:   "auto",
		LowPercentile:     2,
		HighPercentile:    98,
		FigureSize:        900,
		PanelSize:         450,
		Theme:             "dark",
		ShowCoordinates:   true,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.insar-viewer/settings/
	baseDir := filepath.Join(homeDir, ".insar-viewer", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from the default location
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path. Comments and trailing commas
// are tolerated so the file can be edited by hand.
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		settings := DefaultSettings()
		settings.InstallID = uuid.NewString()
		return settings, nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.ExportPath == "" {
		settings.ExportPath = defaults.ExportPath
	}
	if settings.DefaultColormap == "" {
		settings.DefaultColormap = defaults.DefaultColormap
	}
	if settings.LowPercentile == 0 && settings.HighPercentile == 0 {
		settings.LowPercentile = defaults.LowPercentile
		settings.HighPercentile = defaults.HighPercentile
	}
	if settings.FigureSize == 0 {
		settings.FigureSize = defaults.FigureSize
	}
	if settings.PanelSize == 0 {
		settings.PanelSize = defaults.PanelSize
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}
	if settings.RecentFolders == nil {
		settings.RecentFolders = []string{}
	}
	if settings.InstallID == "" {
		settings.InstallID = uuid.NewString()
	}

	return &settings, nil
}

// SaveSettings saves user settings to the default location
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo writes settings to path as indented JSON
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// AddRecentFolder moves folder to the front of the recent list
func (s *UserSettings) AddRecentFolder(folder string) {
	s.LastFolder = folder
	s.RecentFolders = lo.Uniq(append([]string{folder}, s.RecentFolders...))
	if len(s.RecentFolders) > maxRecentFolders {
		s.RecentFolders = s.RecentFolders[:maxRecentFolders]
	}
}

// ValidateSettings checks settings before they are saved
func ValidateSettings(settings *UserSettings) error {
	if settings.ExportPath == "" {
		return fmt.Errorf("export path cannot be empty")
	}
	if settings.LowPercentile < 0 || settings.HighPercentile > 100 || settings.LowPercentile >= settings.HighPercentile {
		return fmt.Errorf("invalid percentile bounds %g-%g (need 0 <= low < high <= 100)", settings.LowPercentile, settings.HighPercentile)
	}
	if settings.FigureSize < 128 || settings.FigureSize > 8192 {
		return fmt.Errorf("figure size must be between 128 and 8192 pixels")
	}
	if settings.PanelSize < 64 || settings.PanelSize > 4096 {
		return fmt.Errorf("panel size must be between 64 and 4096 pixels")
	}

	validThemes := map[string]bool{
		"light":  true,
		"dark":   true,
		"system": true,
	}
	if !validThemes[settings.Theme] {
		return fmt.Errorf("invalid theme: %s (must be light, dark, or system)", settings.Theme)
	}

	return nil
}
