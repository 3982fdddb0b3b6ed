// Package classify extracts a canonical source-file path from a spawn's
// argument vector, for attributing a compilation to a peak-memory profile.
package classify

import "strings"

// DefaultSuffixes are the source-file extensions recognized out of the box.
// Callers that compile other languages can extend this list; see
// [SourcePathWithSuffixes].
var DefaultSuffixes = []string{".cpp", ".cc", ".c"}

// SourcePath scans tokens (an already-split argv, such as [proc.Cmdline]'s
// result) and returns the canonical source path, if any. It keeps the last
// token that ends in a recognized suffix and contains a directory separator.
// The separator requirement exists so a bare flag value or literal like
// "-O2" or "a.c" typed without a path never matches a value that merely
// looks like a source file. Leading "../" segments are stripped so the same
// file invoked from different working directories collapses to one profile
// key.
//
// SourcePath is total (it never panics or errors) and idempotent: feeding
// its own output back in as a single-token argv yields the same result.
func SourcePath(tokens []string) (string, bool) {
	return SourcePathWithSuffixes(tokens, DefaultSuffixes)
}

// SourcePathWithSuffixes is [SourcePath] with a caller-supplied suffix list.
func SourcePathWithSuffixes(tokens []string, suffixes []string) (string, bool) {
	best := ""
	found := false

	for _, tok := range tokens {
		candidate := strings.TrimPrefix(tok, `"`)
		if !hasRecognizedSuffix(candidate, suffixes) {
			continue
		}
		if !strings.Contains(candidate, "/") {
			continue
		}
		best = candidate
		found = true
	}

	if !found {
		return "", false
	}
	return stripLeadingParentSegments(best), true
}

// SourcePathFromCmdline classifies a raw, unsplit command-line string (such
// as a pre-tokenization /proc/<pid>/cmdline buffer already NUL-to-space
// converted by a caller) by splitting on shell-word separators first.
func SourcePathFromCmdline(cmdline string) (string, bool) {
	return SourcePath(strings.Fields(cmdline))
}

func hasRecognizedSuffix(candidate string, suffixes []string) bool {
	for _, sfx := range suffixes {
		if strings.HasSuffix(candidate, sfx) {
			return true
		}
	}
	return false
}

// stripLeadingParentSegments removes leading "../" (or "./") segments from a
// path so that "../../src/a.cpp" and "src/a.cpp" collapse to the same key.
func stripLeadingParentSegments(path string) string {
	for {
		switch {
		case strings.HasPrefix(path, "../"):
			path = path[len("../"):]
		case strings.HasPrefix(path, "./"):
			path = path[len("./"):]
		default:
			return path
		}
	}
}
