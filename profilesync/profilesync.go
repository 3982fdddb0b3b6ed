// Package profilesync optionally shares a profile cache file across CI
// machines via one named GitHub release asset, so a cold cache on a fresh
// runner can still start with learned peaks instead of none. It is
// adapted from platforms/github's release-listing manager, trimmed from
// "enumerate every release's every asset" down to "find or create one
// named asset on one tag."
package profilesync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
)

// Config configures a Manager. Owner, Repo, Tag, and Token must all be set
// for sync to be usable; Manager methods return an error otherwise, so
// the feature is off by default rather than silently inert.
type Config struct {
	Owner     string
	Repo      string
	Tag       string
	AssetName string
	Token     string
}

// DefaultAssetName is the release asset name used when Config.AssetName is
// unset.
const DefaultAssetName = "make_memory_cache"

// Manager pushes and pulls one named asset on one release tag.
type Manager struct {
	Config
	client *github.Client
}

// New returns a Manager. If cfg.Token is empty the resulting Manager talks
// to GitHub unauthenticated, which only works against public repositories
// and is subject to low rate limits. Callers needing private-repo access
// must set Token.
func New(cfg Config) *Manager {
	if cfg.AssetName == "" {
		cfg.AssetName = DefaultAssetName
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}

	return &Manager{Config: cfg, client: github.NewClient(httpClient)}
}

// Usable reports whether enough configuration is present to sync at all.
func (m *Manager) Usable() bool {
	return m.Owner != "" && m.Repo != "" && m.Tag != ""
}

// Push uploads data as the configured release asset, replacing any
// existing asset of the same name on that tag. It creates the release if
// the tag doesn't have one yet.
func (m *Manager) Push(ctx context.Context, data []byte) error {
	if !m.Usable() {
		return fmt.Errorf("profilesync: owner, repo, and tag must all be configured")
	}

	release, err := m.releaseForTag(ctx)
	if err != nil {
		return err
	}

	if err := m.deleteExistingAsset(ctx, release.GetID()); err != nil {
		return err
	}

	_, _, err = m.client.Repositories.UploadReleaseAsset(
		ctx, m.Owner, m.Repo, release.GetID(),
		&github.UploadOptions{Name: m.AssetName},
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("profilesync: upload asset %s: %w", m.AssetName, err)
	}
	return nil
}

// Pull downloads the configured release asset's contents. A missing
// release or asset is reported as an error; callers should treat that as
// "no shared cache available yet," not a fatal condition.
func (m *Manager) Pull(ctx context.Context) ([]byte, error) {
	if !m.Usable() {
		return nil, fmt.Errorf("profilesync: owner, repo, and tag must all be configured")
	}

	release, _, err := m.client.Repositories.GetReleaseByTag(ctx, m.Owner, m.Repo, m.Tag)
	if err != nil {
		return nil, fmt.Errorf("profilesync: no release for tag %s: %w", m.Tag, err)
	}

	asset, err := m.findAsset(ctx, release.GetID())
	if err != nil {
		return nil, err
	}

	rc, _, err := m.client.Repositories.DownloadReleaseAsset(ctx, m.Owner, m.Repo, asset.GetID(), http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("profilesync: download asset %s: %w", m.AssetName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("profilesync: read asset %s: %w", m.AssetName, err)
	}
	return data, nil
}

func (m *Manager) releaseForTag(ctx context.Context) (*github.RepositoryRelease, error) {
	release, _, err := m.client.Repositories.GetReleaseByTag(ctx, m.Owner, m.Repo, m.Tag)
	if err == nil {
		return release, nil
	}

	release, _, err = m.client.Repositories.CreateRelease(ctx, m.Owner, m.Repo, &github.RepositoryRelease{
		TagName: &m.Tag,
		Name:    &m.Tag,
	})
	if err != nil {
		return nil, fmt.Errorf("profilesync: create release for tag %s: %w", m.Tag, err)
	}
	return release, nil
}

func (m *Manager) findAsset(ctx context.Context, releaseID int64) (*github.ReleaseAsset, error) {
	assets, _, err := m.client.Repositories.ListReleaseAssets(ctx, m.Owner, m.Repo, releaseID, &github.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("profilesync: list assets: %w", err)
	}
	for _, a := range assets {
		if a.GetName() == m.AssetName {
			return a, nil
		}
	}
	return nil, fmt.Errorf("profilesync: no asset named %s on this release", m.AssetName)
}

func (m *Manager) deleteExistingAsset(ctx context.Context, releaseID int64) error {
	asset, err := m.findAsset(ctx, releaseID)
	if err != nil {
		return nil // nothing to delete
	}
	if _, err := m.client.Repositories.DeleteReleaseAsset(ctx, m.Owner, m.Repo, asset.GetID()); err != nil {
		return fmt.Errorf("profilesync: delete existing asset %s: %w", m.AssetName, err)
	}
	return nil
}
