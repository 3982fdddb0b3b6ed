package gate

import (
	"testing"

	"github.com/arctir/jobmem/host"
)

type fakeStore struct {
	peaks map[string]uint32
}

func (f *fakeStore) Lookup(path string) (int, uint32, int64, bool) {
	peak, ok := f.peaks[path]
	return 0, peak, 0, ok
}

type fakeRegion struct {
	reservedMiB    uint32
	unusedPeaksMiB uint32
	reservations   map[uint32]uint32
}

func newFakeRegion() *fakeRegion {
	return &fakeRegion{reservations: map[uint32]uint32{}}
}

func (f *fakeRegion) Reserve(pid uint32, mib uint32) bool {
	f.reservedMiB += mib - f.reservations[pid]
	f.reservations[pid] = mib
	return true
}

func (f *fakeRegion) Release(pid uint32) {
	f.reservedMiB -= f.reservations[pid]
	delete(f.reservations, pid)
}

func (f *fakeRegion) Totals() (uint32, uint32) {
	return f.reservedMiB, f.unusedPeaksMiB
}

type fakeHost struct {
	sample host.Sample
}

func (f *fakeHost) Sample() host.Sample { return f.sample }

func TestMaySpawnUnknownCostAlwaysGoes(t *testing.T) {
	region := newFakeRegion()
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 10, Known: true}},
	}

	if d := g.MaySpawn(1, "src/unseen.cpp", true); d != Go {
		t.Fatalf("expected Go for an unclassified/unknown cost, got %s", d)
	}
}

func TestMaySpawnFitsWhenEffectiveFreeCovers(t *testing.T) {
	region := newFakeRegion()
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 1000, Known: true}},
	}

	d := g.MaySpawn(1, "src/a.cpp", true)
	if d != Go {
		t.Fatalf("expected Go, got %s", d)
	}
	reserved, _ := region.Totals()
	if reserved != 100 {
		t.Fatalf("expected reservation of 100, got %d", reserved)
	}
}

func TestMaySpawnWaitsWhenEffectiveFreeTooSmall(t *testing.T) {
	region := newFakeRegion()
	region.reservedMiB = 950
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 1000, Known: true}},
	}

	d := g.MaySpawn(1, "src/a.cpp", true)
	if d != Wait {
		t.Fatalf("expected Wait, got %s", d)
	}
}

func TestMaySpawnUnusedPeaksCountTowardImminent(t *testing.T) {
	region := newFakeRegion()
	region.unusedPeaksMiB = 950
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 1000, Known: true}},
	}

	if d := g.MaySpawn(1, "src/a.cpp", true); d != Wait {
		t.Fatalf("expected Wait, got %s", d)
	}
}

func TestMaySpawnUnknownHostMemoryAlwaysGoes(t *testing.T) {
	region := newFakeRegion()
	region.reservedMiB = 999999
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{Known: false}},
	}

	if d := g.MaySpawn(1, "src/a.cpp", true); d != Go {
		t.Fatalf("expected Go when host memory is unknown, got %s", d)
	}
}

func TestMaySpawnMinSlackMiBTightensKnownCost(t *testing.T) {
	region := newFakeRegion()
	g := &Gate{
		Store:       &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region:      region,
		Host:        &fakeHost{sample: host.Sample{FreeMiB: 150, Known: true}},
		MinSlackMiB: 100,
	}

	if d := g.MaySpawn(1, "src/a.cpp", true); d != Wait {
		t.Fatalf("expected Wait with MinSlackMiB pushing required over effective free, got %s", d)
	}
}

func TestReleaseFreesReservation(t *testing.T) {
	region := newFakeRegion()
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{"src/a.cpp": 100}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 1000, Known: true}},
	}

	g.MaySpawn(1, "src/a.cpp", true)
	reserved, _ := region.Totals()
	if reserved != 100 {
		t.Fatalf("expected reservation of 100, got %d", reserved)
	}

	g.Region.Release(1)
	reserved, _ = region.Totals()
	if reserved != 0 {
		t.Fatalf("expected reservation freed to 0, got %d", reserved)
	}
}

func TestMaySpawnNoHintTreatedAsUnknown(t *testing.T) {
	region := newFakeRegion()
	g := &Gate{
		Store:  &fakeStore{peaks: map[string]uint32{}},
		Region: region,
		Host:   &fakeHost{sample: host.Sample{FreeMiB: 1, Known: true}},
	}

	if d := g.MaySpawn(1, "", false); d != Go {
		t.Fatalf("expected Go when there is no classification hint at all, got %s", d)
	}
}
