package stats

import (
	"context"
	"time"

	"github.com/containerd/cgroups"
	v1 "github.com/containerd/cgroups/stats/v1"
	v2 "github.com/containerd/cgroups/v2"
	"github.com/pkg/errors"
)

const unifiedMountpoint = "/sys/fs/cgroup"

// CGroups reads counters of the v1 control group a process belongs to.
// Everything else in the group is counted too, which is what you want for a
// process running alone in a container.
type CGroups struct {
	control cgroups.Cgroup
}

// CGroupsV2 reads counters of the unified (v2) control group a process
// belongs to.
type CGroupsV2 struct {
	manager *v2.Manager
}

// NewCGroupsSource loads the control group of pid, picking the v1 or v2
// implementation from the host's cgroup mode.
func NewCGroupsSource(pid int) (ResourceSource, error) {
	if cgroups.Mode() == cgroups.Unified {
		return NewCGroupsSourceV2(pid)
	}

	control, err := cgroups.Load(reportControllers, cgroups.PidPath(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load cgroup of process %d", pid)
	}
	return &CGroups{control: control}, nil
}

// NewCGroupsSourceV2 loads the unified control group of pid.
func NewCGroupsSourceV2(pid int) (*CGroupsV2, error) {
	group, err := v2.PidGroupPath(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve cgroup of process %d", pid)
	}
	manager, err := v2.LoadManager(unifiedMountpoint, group)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load cgroup: '%s'", group)
	}
	return &CGroupsV2{manager: manager}, nil
}

// reportControllers returns v1 controllers only required for measuring resource usage
func reportControllers() ([]cgroups.Subsystem, error) {
	v1, err := cgroups.V1()
	if err != nil {
		return nil, err
	}

	var out []cgroups.Subsystem
	for _, sub := range v1 {
		if sub.Name() == cgroups.Memory || sub.Name() == cgroups.Cpuacct {
			out = append(out, sub)
		}
	}

	return out, nil
}

// Name implements ResourceSource.
func (s *CGroups) Name() string { return SourceCGroup }

func (s *CGroups) stat() (*v1.Metrics, error) {
	metrics, err := s.control.Stat(cgroups.IgnoreNotExist)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get metrics from cgroup")
	}
	return metrics, nil
}

// MemoryBytes implements ResourceSource.
func (s *CGroups) MemoryBytes(_ context.Context) (uint64, error) {
	metrics, err := s.stat()
	if err != nil {
		return 0, err
	}
	if metrics.Memory == nil {
		return 0, errors.New("cgroup reports no memory controller")
	}
	return metrics.Memory.TotalRSS, nil
}

// CPUTime implements ResourceSource.
func (s *CGroups) CPUTime(_ context.Context) (time.Duration, error) {
	metrics, err := s.stat()
	if err != nil {
		return 0, err
	}
	if metrics.CPU == nil || metrics.CPU.Usage == nil {
		return 0, errors.New("cgroup reports no cpuacct controller")
	}
	return time.Duration(metrics.CPU.Usage.Total), nil
}

// Name implements ResourceSource.
func (s *CGroupsV2) Name() string { return SourceCGroup }

// MemoryBytes implements ResourceSource.
func (s *CGroupsV2) MemoryBytes(_ context.Context) (uint64, error) {
	metrics, err := s.manager.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get metrics from cgroup")
	}
	if metrics.Memory == nil {
		return 0, errors.New("cgroup reports no memory controller")
	}
	return metrics.Memory.Usage, nil
}

// CPUTime implements ResourceSource.
func (s *CGroupsV2) CPUTime(_ context.Context) (time.Duration, error) {
	metrics, err := s.manager.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get metrics from cgroup")
	}
	if metrics.CPU == nil {
		return 0, errors.New("cgroup reports no cpu controller")
	}
	return time.Duration(metrics.CPU.UsageUsec) * time.Microsecond, nil
}
