// Package convert turns VMware disks into qcow2 images by driving
// qemu-img, one subprocess per logical disk.
package convert

import (
	"fmt"
	"sync"

	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
)

// JobState is the conversion state of one disk.
type JobState string

const (
	JobPending    JobState = "pending"
	JobConverting JobState = "converting"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
)

// Job binds one source disk to one target output path. Terminal states
// (done, failed) are immutable.
type Job struct {
	Source     *vmdk.Descriptor
	TargetPath string

	mu    sync.Mutex
	state JobState
	err   error
}

// NewJob returns a pending job for the given disk and target path.
func NewJob(source *vmdk.Descriptor, targetPath string) *Job {
	return &Job{Source: source, TargetPath: targetPath, state: JobPending}
}

// State returns the current job state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure that terminated the job, or nil.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) markConverting() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobPending {
		return fmt.Errorf("cannot start conversion from state %s", j.state)
	}
	j.state = JobConverting
	return nil
}

func (j *Job) markDone() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobConverting {
		return fmt.Errorf("cannot complete conversion from state %s", j.state)
	}
	j.state = JobDone
	return nil
}

func (j *Job) markFailed(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobDone || j.state == JobFailed {
		return
	}
	j.state = JobFailed
	j.err = err
}
