package patch

// Describes a single contiguous edit: in the base text, the region
// [Start, Start+Removed) is replaced by Inserted.
type Patch struct {
	Start    int    `json:"start"`
	Removed  int    `json:"removed"`
	Inserted string `json:"inserted"`
}

// Reports whether the patch changes nothing. Callers drop no-op
// patches instead of relaying them (pure cursor movement).
func (p Patch) IsNoop() bool {
	return p.Removed == 0 && p.Inserted == ""
}

// Compute diffs two text states into a minimal contiguous patch by
// trimming the common prefix and suffix. The suffix scan is bounded by
// the prefix so the two regions never overlap. This is exact for a
// single contiguous edit region (typical keystroke batches); it is not
// a general minimal-edit-distance diff.
func Compute(oldText, newText string) Patch {
	start := 0
	minLen := len(oldText)
	if len(newText) < minLen {
		minLen = len(newText)
	}
	for start < minLen && oldText[start] == newText[start] {
		start++
	}

	endOld, endNew := len(oldText), len(newText)
	for endOld > start && endNew > start && oldText[endOld-1] == newText[endNew-1] {
		endOld--
		endNew--
	}

	return Patch{
		Start:    start,
		Removed:  endOld - start,
		Inserted: newText[start:endNew],
	}
}

// Apply replaces the patched region of base and returns the result.
// Indices are clamped instead of validated: a patch computed against a
// stale base still yields a deterministic (if semantically wrong)
// string rather than a panic. Rejecting stale patches would desync
// clients that expect best-effort application.
func Apply(base string, p Patch) string {
	start := clamp(p.Start, 0, len(base))
	end := clamp(p.Start+p.Removed, start, len(base))
	return base[:start] + p.Inserted + base[end:]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
