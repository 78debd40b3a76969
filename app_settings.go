package main

import (
	"insar-viewer/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	settingsCopy.RecentFolders = append([]string(nil), a.settings.RecentFolders...)
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Fields the frontend does not edit
	settings.InstallID = a.settings.InstallID
	if settings.RecentFolders == nil {
		settings.RecentFolders = a.settings.RecentFolders
	}

	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	// Display defaults apply to the next render
	opts := a.session.Overrides()
	opts.Colormap = settings.DefaultColormap
	opts.LowPercentile = settings.LowPercentile
	opts.HighPercentile = settings.HighPercentile
	if err := a.session.SetOverrides(opts); err != nil {
		return err
	}
	a.session.SetRecursive(settings.RecursiveScan)
	a.preview.SetSizes(settings.FigureSize, settings.PanelSize)

	a.settings = settings
	a.logger.Info().Str("path", config.GetSettingsPath()).Msg("settings saved")
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// GetRecentFolders returns recently opened folders, most recent first
func (a *App) GetRecentFolders() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.settings.RecentFolders...)
}
