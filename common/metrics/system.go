package metrics

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemInfo describes the host the service runs on. It is captured once
// at startup and logged so support tickets carry the runtime environment.
type SystemInfo struct {
	Hostname         string
	OS               string
	OSVersion        string
	Arch             string
	CPUs             int
	MemoryMB         uint64
	GoVersion        string
	InContainer      bool
	ContainerRuntime string
}

// CaptureSystem gathers host information. Probes that fail leave their
// field zero; nothing here is worth failing startup over.
func CaptureSystem() *SystemInfo {
	info := &SystemInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	info.OSVersion = osVersion()
	info.MemoryMB = totalMemoryMB()
	info.InContainer, info.ContainerRuntime = detectContainer()
	return info
}

// osVersion reads the distribution name from /etc/os-release. Non-Linux
// hosts fall back to the bare GOOS value.
func osVersion() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return runtime.GOOS
	}
	for _, line := range strings.Split(string(data), "\n") {
		if value, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return strings.Trim(value, "\"")
		}
	}
	return runtime.GOOS
}

// totalMemoryMB reads MemTotal from /proc/meminfo
func totalMemoryMB() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}

// detectContainer reports whether the process runs inside a container
// and which runtime hosts it
func detectContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "docker"
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true, "kubernetes"
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false, ""
	}
	content := string(data)
	switch {
	case strings.Contains(content, "docker"):
		return true, "docker"
	case strings.Contains(content, "kubepods"):
		return true, "kubernetes"
	case strings.Contains(content, "containerd"):
		return true, "containerd"
	}
	return false, ""
}
