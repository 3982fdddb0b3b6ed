package cmd

import (
	"fmt"
	"os"

	"github.com/arctir/jobmem/gate"
	"github.com/arctir/jobmem/host"
	"github.com/arctir/jobmem/profile"
	"github.com/arctir/jobmem/shm"
	"github.com/spf13/cobra"
)

func runGate(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
	path := args[0]

	store := profile.New(cachePathOrDefault(cmd), 0)
	if err := store.Load(); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed loading profile cache: %s", err))
	}

	name := sharedNameOrDefault(cmd)
	if name == "" {
		name = shm.DefaultName
	}
	region, err := shm.Attach(name)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("no running build found: attaching to shared region %q failed: %s", name, err))
	}
	defer region.Close()

	g := &gate.Gate{Store: store, Region: region, Host: host.NewProcProber()}

	_, peak, _, known := store.Lookup(path)
	reserved, unusedPeaks := region.Totals()
	sample := g.Host.Sample()

	decision := g.MaySpawn(uint32(os.Getpid()), path, true)

	rows := [][]string{
		{"source path", path},
		{"known cost (MiB)", fmtBoolValue(known, peak)},
		{"host free (MiB)", fmt.Sprintf("%d", sample.FreeMiB)},
		{"reserved (MiB)", fmt.Sprintf("%d", reserved)},
		{"unused peaks (MiB)", fmt.Sprintf("%d", unusedPeaks)},
		{"decision", decision.String()},
	}
	output(createTableOutput([]string{"field", "value"}, rows))

	// This call reserved memory as a side effect of asking; release it
	// immediately since this is a diagnostic query, not a real spawn.
	region.Release(uint32(os.Getpid()))
}

func fmtBoolValue(known bool, peak uint32) string {
	if !known {
		return "unknown"
	}
	return fmt.Sprintf("%d", peak)
}
