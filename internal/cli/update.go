package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// githubReleasesURL is the GitHub API endpoint for releases
	githubReleasesURL = "https://api.github.com/repos/rp-cli/rp/releases/latest"

	// updateCheckCacheTTL is how long to cache the update check result
	updateCheckCacheTTL = 24 * time.Hour

	// updateCheckTimeout is the max time to wait for the GitHub API
	updateCheckTimeout = 3 * time.Second
)

// githubRelease represents the relevant fields from GitHub's release API
type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// updateCache stores cached update check results
type updateCache struct {
	LatestVersion string    `json:"latest_version"`
	CheckedAt     time.Time `json:"checked_at"`
}

func getCachePath() (string, error) {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		cacheDir = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cacheDir, "rp", "update-check"), nil
}

func readUpdateCache() (*updateCache, error) {
	cachePath, err := getCachePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}

	var cache updateCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func writeUpdateCache(cache *updateCache) error {
	cachePath, err := getCachePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	return os.WriteFile(cachePath, data, 0o644)
}

func isCacheValid(cache *updateCache) bool {
	return time.Since(cache.CheckedAt) < updateCheckCacheTTL
}

// fetchLatestVersion fetches the latest version from GitHub
func fetchLatestVersion() (string, error) {
	client := &http.Client{Timeout: updateCheckTimeout}

	req, err := http.NewRequest("GET", githubReleasesURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "rp-cli")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	return release.TagName, nil
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewerVersion returns true if latest is newer than current.
// Simple string comparison works for semver (v1.0.0 < v1.1.0).
func isNewerVersion(current, latest string) bool {
	current = normalizeVersion(current)
	latest = normalizeVersion(latest)

	if current == "dev" || current == "" {
		return false
	}
	return latest > current
}

// checkForUpdate returns the latest version if an update is available,
// empty string otherwise. Network errors fail silently.
func checkForUpdate() string {
	if os.Getenv("RP_NO_UPDATE_CHECK") == "1" {
		return ""
	}

	cache, err := readUpdateCache()
	if err == nil && isCacheValid(cache) {
		if isNewerVersion(version, cache.LatestVersion) {
			return cache.LatestVersion
		}
		return ""
	}

	latest, err := fetchLatestVersion()
	if err != nil {
		return ""
	}

	_ = writeUpdateCache(&updateCache{
		LatestVersion: latest,
		CheckedAt:     time.Now(),
	})

	if isNewerVersion(version, latest) {
		return latest
	}
	return ""
}

// checkAndDisplayUpdate checks for updates and displays a notice if available
func checkAndDisplayUpdate() {
	latest := checkForUpdate()
	if latest == "" {
		return
	}

	fmt.Println()
	fmt.Printf("A new version is available: %s\n", formatVersion(latest))
	fmt.Println("Update with: go install github.com/rp-cli/rp/cmd/rp@latest")
}
