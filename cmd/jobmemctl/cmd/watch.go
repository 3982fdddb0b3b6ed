package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arctir/jobmem/host"
	"github.com/arctir/jobmem/shm"
	"github.com/spf13/cobra"
)

// runWatch samples a running build's shared totals and host memory once
// per interval until interrupted. It is read-only: it never reserves or
// releases anything, so it can run alongside a real build without
// disturbing its accounting.
func runWatch(cmd *cobra.Command, args []string) {
	name := sharedNameOrDefault(cmd)
	if name == "" {
		name = shm.DefaultName
	}
	region, err := shm.Attach(name)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("no running build found: attaching to shared region %q failed: %s", name, err))
	}
	defer region.Close()

	interval, _ := cmd.Flags().GetInt(intervalFlag)
	if interval <= 0 {
		interval = 1
	}

	prober := host.NewProcProber()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		reserved, unused := region.Totals()
		sample := prober.Sample()
		if sample.Known {
			fmt.Printf("free=%dMiB reserved=%dMiB unused_peaks=%dMiB used=%.1f%%\n", sample.FreeMiB, reserved, unused, sample.UsedPercent)
		} else {
			fmt.Printf("free=unknown reserved=%dMiB unused_peaks=%dMiB\n", reserved, unused)
		}

		select {
		case <-sigCh:
			return
		case <-ticker.C:
		}
	}
}
