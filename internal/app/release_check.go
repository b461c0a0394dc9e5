package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	releaseCheckTimeout = 15 * time.Second
	releaseQueryURL     = "https://git.skobk.in/api/v1/repos/skobkin/simlink/releases?draft=false&pre-release=false&limit=1"
)

// Release describes the newest published simlink build.
type Release struct {
	Version     string
	HTMLURL     string
	PublishedAt time.Time
}

// ReleaseChecker asks the forge for the newest release once per call.
type ReleaseChecker struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type forgejoRelease struct {
	TagName     string    `json:"tag_name"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

func NewReleaseChecker(logger *slog.Logger, endpoint string, client *http.Client) *ReleaseChecker {
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		endpoint = releaseQueryURL
	}
	if client == nil {
		client = &http.Client{Timeout: releaseCheckTimeout}
	}
	if logger == nil {
		logger = slog.Default().With("component", "app.releases")
	}

	return &ReleaseChecker{endpoint: endpoint, client: client, logger: logger}
}

// Check returns the latest release and whether it is newer than current.
func (c *ReleaseChecker) Check(ctx context.Context, current string) (Release, bool, error) {
	latest, err := c.fetchLatest(ctx)
	if err != nil {
		return Release{}, false, err
	}
	newer := isReleaseNewer(current, latest.Version)
	c.logger.Debug("release check completed", "current_version", current, "latest_version", latest.Version, "update_available", newer)

	return latest, newer, nil
}

func (c *ReleaseChecker) fetchLatest(ctx context.Context) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Release{}, fmt.Errorf("create releases request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("request releases: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			return Release{}, fmt.Errorf("request releases: unexpected status %d: %s", resp.StatusCode, trimmed)
		}

		return Release{}, fmt.Errorf("request releases: unexpected status %d", resp.StatusCode)
	}

	var payload []forgejoRelease
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Release{}, fmt.Errorf("decode releases response: %w", err)
	}
	for _, item := range payload {
		if version := strings.TrimSpace(item.TagName); version != "" {
			return Release{
				Version:     version,
				HTMLURL:     strings.TrimSpace(item.HTMLURL),
				PublishedAt: item.PublishedAt,
			}, nil
		}
	}

	return Release{}, fmt.Errorf("release API response has no tagged release")
}

// isReleaseNewer treats an unparsable current version, such as "dev", as
// older than any valid release.
func isReleaseNewer(current, latest string) bool {
	latest = canonicalVersion(latest)
	if !semver.IsValid(latest) {
		return false
	}
	current = canonicalVersion(current)
	if !semver.IsValid(current) {
		return true
	}

	return semver.Compare(current, latest) < 0
}

func canonicalVersion(version string) string {
	version = strings.TrimSpace(version)
	if version != "" && !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	return version
}
