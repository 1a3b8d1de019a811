package stats

import "github.com/pkg/errors"

// NewSource opens the counter source of the given kind for pid. "auto"
// prefers procfs.
func NewSource(kind string, pid int) (ResourceSource, error) {
	switch kind {
	case SourceAuto, SourceProcFS, "":
		return NewProcFSSource(pid)
	case SourceGopsutil:
		return NewGopsutilSource(pid)
	case SourceCGroup:
		return NewCGroupsSource(pid)
	default:
		return nil, errors.Errorf("unknown resource source %q", kind)
	}
}
