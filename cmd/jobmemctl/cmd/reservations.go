package cmd

import (
	"fmt"
	"strconv"

	"github.com/arctir/jobmem/shm"
	"github.com/spf13/cobra"
)

func runReservations(cmd *cobra.Command, args []string) {
	name := sharedNameOrDefault(cmd)
	if name == "" {
		name = shm.DefaultName
	}
	region, err := shm.Attach(name)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("no running build found: attaching to shared region %q failed: %s", name, err))
	}
	defer region.Close()

	rows := [][]string{}
	for _, r := range region.Reservations() {
		rows = append(rows, []string{strconv.FormatUint(uint64(r.Pid), 10), strconv.FormatUint(uint64(r.ReservedMiB), 10)})
	}
	output(createTableOutput([]string{"pid", "reserved MiB"}, rows))

	reserved, unused := region.Totals()
	fmt.Printf("total reserved: %d MiB, unused peaks: %d MiB\n", reserved, unused)
}
