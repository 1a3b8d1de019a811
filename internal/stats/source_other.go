//go:build !linux

package stats

import "github.com/pkg/errors"

// NewSource opens the counter source of the given kind for pid. Only
// gopsutil is available off Linux.
func NewSource(kind string, pid int) (ResourceSource, error) {
	switch kind {
	case SourceAuto, SourceGopsutil, "":
		return NewGopsutilSource(pid)
	case SourceProcFS, SourceCGroup:
		return nil, errors.Errorf("resource source %q requires linux", kind)
	default:
		return nil, errors.Errorf("unknown resource source %q", kind)
	}
}
