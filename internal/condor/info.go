package condor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// MinimumVersion is the oldest HTCondor release known to understand the
// submit descriptions written by this package.
const MinimumVersion = "7.4.0"

// Info describes the condor installation as seen by a Client.
type Info struct {
	BinDir    string // "" when commands are looked up on PATH
	Submit    string // resolved condor_submit path
	Version   string // e.g. "10.9.0", empty when unknown
	Supported bool   // Version >= MinimumVersion
	InJob     bool   // running inside an HTCondor job
	Reachable bool   // condor_q succeeded
}

// GpuInfo holds the GPUs advertised by one machine.
type GpuInfo struct {
	Machine string
	Total   int
}

// ClusterInfo summarises the execute nodes reported by condor_status.
type ClusterInfo struct {
	MaxCpusPerNode  int
	MaxMemMBPerNode int64
	Gpus            []GpuInfo
}

// ParseVersion extracts the release from condor_version output such as
// "$CondorVersion: 10.9.0 2023-09-28 BuildID: 678228 PackageID: 10.9.0-1 $".
func ParseVersion(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		for i, p := range parts {
			if p == "$CondorVersion:" && i+1 < len(parts) {
				v := parts[i+1]
				if semver.Canonical("v"+v) == "" {
					return "", fmt.Errorf("%w: %q", ErrVersionParseFailed, v)
				}
				return v, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrVersionParseFailed, strings.TrimSpace(output))
}

// VersionAtLeast compares two dotted releases. Unparseable input is never
// considered recent enough.
func VersionAtLeast(version, minimum string) bool {
	v := semver.Canonical("v" + strings.TrimPrefix(version, "v"))
	m := semver.Canonical("v" + strings.TrimPrefix(minimum, "v"))
	if v == "" || m == "" {
		return false
	}
	return semver.Compare(v, m) >= 0
}

// Version runs condor_version and returns the release number.
func (c *Client) Version(ctx context.Context) (string, error) {
	res := c.run(ctx, CmdVersion)
	if !res.OK() {
		return "", &CommandError{Command: CmdVersion, Result: res}
	}
	return ParseVersion(res.Output)
}

// Info gathers installation details. It never fails; unknown fields stay empty.
func (c *Client) Info(ctx context.Context) *Info {
	info := &Info{
		BinDir: c.binDir,
		Submit: c.CommandPath(CmdSubmit),
		InJob:  IsInsideJob(),
	}
	if v, err := c.Version(ctx); err == nil {
		info.Version = v
		info.Supported = VersionAtLeast(v, MinimumVersion)
	} else {
		c.log.Debugf("condor version unavailable: %v", err)
	}
	info.Reachable = c.Queue(ctx).OK()
	return info
}

// ClusterInfo queries condor_status for the largest node and the GPUs in the pool.
func (c *Client) ClusterInfo(ctx context.Context) (*ClusterInfo, error) {
	res := c.run(ctx, CmdStatus, "-compact", "-af", "TotalSlotCpus", "TotalSlotMemory")
	if !res.OK() {
		return nil, &CommandError{Command: CmdStatus, Result: res}
	}
	info := &ClusterInfo{}
	info.MaxCpusPerNode, info.MaxMemMBPerNode = parseNodeResources(res.Output)

	gpuRes := c.run(ctx, CmdStatus, "-compact", "-constraint", "TotalGpus > 0", "-af", "TotalGpus", "Machine")
	if gpuRes.OK() {
		info.Gpus = parseGpus(gpuRes.Output)
	}
	return info, nil
}

// parseNodeResources reads "<cpus> <memMB>" lines and keeps the maxima.
func parseNodeResources(output string) (int, int64) {
	var maxCpus int
	var maxMemMB int64
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		cpus, err1 := strconv.Atoi(fields[0])
		memMB, err2 := strconv.ParseInt(fields[1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if cpus > maxCpus {
			maxCpus = cpus
		}
		if memMB > maxMemMB {
			maxMemMB = memMB
		}
	}
	return maxCpus, maxMemMB
}

// parseGpus reads "<count> <machine>" lines, summing counts per machine in
// first-seen order.
func parseGpus(output string) []GpuInfo {
	var gpus []GpuInfo
	index := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			continue
		}
		machine := fields[1]
		if i, ok := index[machine]; ok {
			gpus[i].Total += n
			continue
		}
		index[machine] = len(gpus)
		gpus = append(gpus, GpuInfo{Machine: machine, Total: n})
	}
	return gpus
}
