// Package cmd implements jobmemctl's cobra command tree, grounded on the
// teacher's package-level-command-var style (see cmd_command_defs.go and
// cmd_config.go) and its tablewriter-based table output.
package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SetupCLI constructs the cobra hierarchy for the jobmemctl CLI.
func SetupCLI() *cobra.Command {
	jobmemctlCmd.AddCommand(profileCmd)
	jobmemctlCmd.AddCommand(gateCmd)
	jobmemctlCmd.AddCommand(reservationsCmd)
	jobmemctlCmd.AddCommand(watchCmd)
	profileCmd.AddCommand(profileDumpCmd)
	profileCmd.AddCommand(profilePushCmd)
	profileCmd.AddCommand(profilePullCmd)

	return jobmemctlCmd
}

func runJobmemctl(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
}

func runProfile(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
}

func output(out []byte) {
	fmt.Printf("%s", out)
}

func outputErrorAndFail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func cacheFlagOrDefault(cmd *cobra.Command) string {
	return cacheFlagFromSet(cmd.Flags())
}

func sharedNameOrDefault(cmd *cobra.Command) string {
	return sharedNameFromSet(cmd.Flags())
}

// cacheFlagFromSet and sharedNameFromSet take a *pflag.FlagSet directly
// rather than a *cobra.Command, so they can be reused by any command's
// flag set without depending on cobra.
func cacheFlagFromSet(fs *pflag.FlagSet) string {
	path, _ := fs.GetString(cacheFlag)
	return path
}

func sharedNameFromSet(fs *pflag.FlagSet) string {
	name, _ := fs.GetString(sharedFlag)
	return name
}

func createTableOutput(header []string, rows [][]string) []byte {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}
