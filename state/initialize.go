package state

import "time"

// newLocalEnv creates a new LocalEnv instance, configuration, logger and
// report are set later when command line is parsed.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}
