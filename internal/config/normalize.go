package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Drive.RootFolderID = strings.TrimSpace(c.Drive.RootFolderID)
	c.Drive.UploadFolderID = strings.TrimSpace(c.Drive.UploadFolderID)
	if c.Drive.UploadFolderID == "" {
		c.Drive.UploadFolderID = c.Drive.RootFolderID
	}
	if c.Drive.Workers <= 0 {
		c.Drive.Workers = defaultWorkers
	}
	if c.Photos.Workers <= 0 {
		c.Photos.Workers = defaultWorkers
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = defaultRetryBaseMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = defaultRetryMaxMS
	}
	c.Conflicts.Policy = strings.ToLower(strings.TrimSpace(c.Conflicts.Policy))
	if c.Conflicts.Policy == "" {
		c.Conflicts.Policy = defaultConflictPolicy
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(valueOr(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SpoolDir) != "" {
		if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
			return fmt.Errorf("paths.spool_dir: %w", err)
		}
	}
	if c.Paths.CredentialsFile, err = expandPath(valueOr(c.Paths.CredentialsFile, defaultCredentialsFile)); err != nil {
		return fmt.Errorf("paths.credentials_file: %w", err)
	}
	if c.Paths.TokenFile, err = expandPath(valueOr(c.Paths.TokenFile, defaultTokenFile)); err != nil {
		return fmt.Errorf("paths.token_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
