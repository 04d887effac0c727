package metrics

import "strings"

// Prefix is prepended to every metric exported by graphsync.
const Prefix = "graphsync_"

// MetricName returns name with the graphsync prefix applied once.
func MetricName(name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}

// MetricNameWithSubsystem joins subsystem and name under the graphsync prefix.
func MetricNameWithSubsystem(subsystem, name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	subsystem = strings.Trim(subsystem, "_")
	switch {
	case subsystem == "":
		return MetricName(name)
	case name == "":
		return Prefix + subsystem
	default:
		return Prefix + subsystem + "_" + name
	}
}
