package cmd

const (
	cacheFlag    = "cache"
	sharedFlag   = "shared-name"
	ownerFlag    = "owner"
	repoFlag     = "repo"
	tagFlag      = "tag"
	assetFlag    = "asset"
	tokenFlag    = "token"
	intervalFlag = "interval"
)

// CLI flags to initialize.
func init() {
	profileDumpCmd.Flags().String(cacheFlag, "", "Path to the profile cache file (default: ./.make_memory_cache).")

	profilePushCmd.Flags().String(cacheFlag, "", "Path to the profile cache file (default: ./.make_memory_cache).")
	profilePushCmd.Flags().String(ownerFlag, "", "GitHub repository owner to push the shared cache asset to.")
	profilePushCmd.Flags().String(repoFlag, "", "GitHub repository name to push the shared cache asset to.")
	profilePushCmd.Flags().String(tagFlag, "", "Release tag to attach the shared cache asset to.")
	profilePushCmd.Flags().String(assetFlag, "", "Release asset name (default: make_memory_cache).")
	profilePushCmd.Flags().String(tokenFlag, "", "GitHub token. Falls back to $GITHUB_TOKEN.")

	profilePullCmd.Flags().String(cacheFlag, "", "Path to the profile cache file (default: ./.make_memory_cache).")
	profilePullCmd.Flags().String(ownerFlag, "", "GitHub repository owner to pull the shared cache asset from.")
	profilePullCmd.Flags().String(repoFlag, "", "GitHub repository name to pull the shared cache asset from.")
	profilePullCmd.Flags().String(tagFlag, "", "Release tag the shared cache asset is attached to.")
	profilePullCmd.Flags().String(assetFlag, "", "Release asset name (default: make_memory_cache).")
	profilePullCmd.Flags().String(tokenFlag, "", "GitHub token. Falls back to $GITHUB_TOKEN.")

	gateCmd.Flags().String(cacheFlag, "", "Path to the profile cache file (default: ./.make_memory_cache).")
	gateCmd.Flags().String(sharedFlag, "", "Shared region name (default: make_memory_shared).")

	reservationsCmd.Flags().String(sharedFlag, "", "Shared region name (default: make_memory_shared).")

	watchCmd.Flags().String(sharedFlag, "", "Shared region name (default: make_memory_shared).")
	watchCmd.Flags().Int(intervalFlag, 1, "Seconds between samples.")
}
