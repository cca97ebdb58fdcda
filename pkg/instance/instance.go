// Package instance names the running process for lock ownership.
package instance

import (
	"os"
	"strconv"

	"github.com/rtwroastery/roastery-backend/pkg/env"
)

// ID is WORKER_ID when set, otherwise host-pid, so two workers sharing a
// host still hold distinct locks.
func ID() string {
	if id := env.Get(env.WorkerIDKey, ""); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}
