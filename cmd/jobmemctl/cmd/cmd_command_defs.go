package cmd

import (
	"github.com/spf13/cobra"
)

var jobmemctlCmd = &cobra.Command{
	Use:   "jobmemctl",
	Short: "Inspect and exercise jobmem's admission and accounting state.",
	Run:   runJobmemctl,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and sync the learned per-source-file memory profile cache.",
	Run:   runProfile,
}

var profileDumpCmd = &cobra.Command{
	Use:     "dump",
	Aliases: []string{"ls", "list"},
	Short:   "Print every entry in the profile cache as a table.",
	Run:     runProfileDump,
}

var profilePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local profile cache as a GitHub release asset.",
	Run:   runProfilePush,
}

var profilePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the shared profile cache and merge it into the local one.",
	Run:   runProfilePull,
}

var gateCmd = &cobra.Command{
	Use:   "gate [source-path]",
	Short: "Ask the admission gate what it would decide for a source path right now.",
	Run:   runGate,
}

var reservationsCmd = &cobra.Command{
	Use:     "reservations",
	Aliases: []string{"res"},
	Short:   "Dump the shared region's live reservation table.",
	Run:     runReservations,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the shared region's totals and host memory once a second until interrupted.",
	Run:   runWatch,
}
