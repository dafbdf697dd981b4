package participant

import (
	"hash/fnv"
	"os"
)

// hostID derives a stable identifier for the local host, used both as the
// SharedMemory transport's ring namespace and as the mobility PID's
// HostID field (spec.md §4.6) — a process restarting on the same host
// keeps the same id, distinguishing "moved" from "restarted".
func hostID() uint64 {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "hdds-unknown-host"
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
