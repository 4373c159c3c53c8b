package upload

import (
	"os"
)

// Job is the transient local state of one upload: a temporary file plus what
// is known about it. It exists only for the duration of the transfer and its
// temp file is removed exactly once, at the end of the job's lifetime.
type Job struct {
	path      string
	Size      int64
	MediaType string
	removed   bool
}

// cleanup removes the job's temporary artifact. Safe to call more than once;
// only the first call touches the filesystem.
func (j *Job) cleanup() error {
	if j.removed {
		return nil
	}
	j.removed = true
	return os.Remove(j.path)
}

// Path returns the location of the temporary artifact
func (j *Job) Path() string {
	return j.path
}
