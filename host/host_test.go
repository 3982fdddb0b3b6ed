package host

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMeminfo(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed writing fixture meminfo: %s", err)
	}
	return path
}

func TestSampleWithMemAvailable(t *testing.T) {
	path := writeMeminfo(t, `MemTotal:       16384000 kB
MemFree:         1000000 kB
MemAvailable:    8000000 kB
Buffers:          200000 kB
Cached:          900000 kB
`)
	p := &ProcProber{MeminfoPath: path}
	s := p.Sample()
	if !s.Known {
		t.Fatalf("expected a known sample")
	}
	if s.FreeMiB != 8000000/1024 {
		t.Fatalf("expected free MiB %d, got %d", 8000000/1024, s.FreeMiB)
	}
	if s.TotalMiB != 16384000/1024 {
		t.Fatalf("expected total MiB %d, got %d", 16384000/1024, s.TotalMiB)
	}
	if s.UsedPercent <= 0 || s.UsedPercent >= 100 {
		t.Fatalf("expected used percent in (0,100), got %f", s.UsedPercent)
	}
}

func TestSampleFallsBackWithoutMemAvailable(t *testing.T) {
	path := writeMeminfo(t, `MemTotal:       16384000 kB
MemFree:         1000000 kB
Buffers:          200000 kB
Cached:          900000 kB
`)
	p := &ProcProber{MeminfoPath: path}
	s := p.Sample()
	if !s.Known {
		t.Fatalf("expected a known sample")
	}
	want := (1000000 + 200000 + 900000) / 1024
	if s.FreeMiB != uint64(want) {
		t.Fatalf("expected free MiB %d, got %d", want, s.FreeMiB)
	}
}

func TestSampleUnknownWhenFileMissing(t *testing.T) {
	p := &ProcProber{MeminfoPath: filepath.Join(t.TempDir(), "does-not-exist")}
	s := p.Sample()
	if s.Known {
		t.Fatalf("expected an unknown sample when meminfo is unreadable")
	}
}

func TestSampleUnknownWhenNoTotal(t *testing.T) {
	path := writeMeminfo(t, `MemFree: 1000 kB
`)
	p := &ProcProber{MeminfoPath: path}
	s := p.Sample()
	if s.Known {
		t.Fatalf("expected an unknown sample when MemTotal is absent")
	}
}
