package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arctir/jobmem/profile"
	"github.com/arctir/jobmem/profilesync"
	"github.com/spf13/cobra"
)

func runProfileDump(cmd *cobra.Command, args []string) {
	path := cachePathOrDefault(cmd)

	store := profile.New(path, 0)
	if err := store.Load(); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed loading profile cache %s: %s", path, err))
	}

	rows := [][]string{}
	for _, e := range store.Entries() {
		commit := e.CommitHash
		if commit == "" {
			commit = "-"
		}
		rows = append(rows, []string{
			e.Path,
			strconv.FormatUint(uint64(e.PeakMiB), 10),
			time.Unix(e.LastUsed, 0).Format(time.RFC3339),
			commit,
		})
	}
	output(createTableOutput([]string{"path", "peak MiB", "last used", "commit"}, rows))
}

func runProfilePush(cmd *cobra.Command, args []string) {
	path := cachePathOrDefault(cmd)
	data, err := os.ReadFile(path)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed reading profile cache %s: %s", path, err))
	}

	mgr := profilesync.New(syncConfigFromFlags(cmd))
	if !mgr.Usable() {
		outputErrorAndFail("push requires --owner, --repo, and --tag all set")
	}
	if err := mgr.Push(context.Background(), data); err != nil {
		outputErrorAndFail(fmt.Sprintf("push failed: %s", err))
	}
	output([]byte(fmt.Sprintf("pushed %d bytes from %s as %s on %s/%s@%s\n", len(data), path, mgr.AssetName, mgr.Owner, mgr.Repo, mgr.Tag)))
}

func runProfilePull(cmd *cobra.Command, args []string) {
	path := cachePathOrDefault(cmd)

	mgr := profilesync.New(syncConfigFromFlags(cmd))
	if !mgr.Usable() {
		outputErrorAndFail("pull requires --owner, --repo, and --tag all set")
	}
	data, err := mgr.Pull(context.Background())
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("pull failed: %s", err))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed writing profile cache %s: %s", path, err))
	}
	output([]byte(fmt.Sprintf("pulled %d bytes from %s/%s@%s into %s\n", len(data), mgr.Owner, mgr.Repo, mgr.Tag, path)))
}

func cachePathOrDefault(cmd *cobra.Command) string {
	path := cacheFlagOrDefault(cmd)
	if path == "" {
		return profile.DefaultCachePath("")
	}
	return path
}

func syncConfigFromFlags(cmd *cobra.Command) profilesync.Config {
	owner, _ := cmd.Flags().GetString(ownerFlag)
	repo, _ := cmd.Flags().GetString(repoFlag)
	tag, _ := cmd.Flags().GetString(tagFlag)
	asset, _ := cmd.Flags().GetString(assetFlag)
	token, _ := cmd.Flags().GetString(tokenFlag)
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	return profilesync.Config{Owner: owner, Repo: repo, Tag: tag, AssetName: asset, Token: token}
}
