package versioncheck

import "time"

// VersionCache represents the cached version check data.
type VersionCache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

const (
	// checkInterval is the duration between version checks.
	checkInterval = 24 * time.Hour

	// fetchTimeout bounds the release lookup against the forge.
	fetchTimeout = 2 * time.Second

	// cacheFileName is the name of the cache file stored in the global config directory.
	cacheFileName = "version_check.json"

	// globalConfigDirName is the name of the global config directory in the user's home.
	globalConfigDirName = ".config/mainline"
)
