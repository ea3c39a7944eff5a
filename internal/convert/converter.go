package convert

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mklucifer/vmware-to-virt/internal/progress"
	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
)

// StageConvert is the progress stage name for disk conversion events.
const StageConvert = "converting"

// Converter runs conversion jobs against qemu-img.
type Converter struct {
	qemu     *QemuImg
	parallel int
	observer progress.Observer
}

// New returns a converter. parallel bounds the number of concurrent
// disk conversions; observer may be nil.
func New(qemu *QemuImg, parallel int, observer progress.Observer) *Converter {
	if parallel < 1 {
		parallel = 1
	}
	if observer == nil {
		observer = progress.Nop()
	}
	return &Converter{qemu: qemu, parallel: parallel, observer: observer}
}

// Run converts all jobs and waits for every started job to finish
// before returning (join barrier). Jobs are independent: each has its
// own target file, so no locking is needed between them. The first
// failure cancels the shared context, which terminates the other
// subprocesses; jobs never started remain pending and are reported as
// aborted by the caller.
func (c *Converter) Run(ctx context.Context, jobs []*Job) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)

	total := len(jobs)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			return c.convertOne(ctx, job, i+1, total)
		})
	}

	return g.Wait()
}

// convertOne runs a single disk conversion through its job lifecycle.
func (c *Converter) convertOne(ctx context.Context, job *Job, index, total int) error {
	if err := ctx.Err(); err != nil {
		// A sibling already failed; leave this job pending.
		return nil
	}
	if err := job.markConverting(); err != nil {
		return err
	}

	source := job.Source.Path
	log.Printf("Converting disk %d/%d: %s -> %s", index, total, source, job.TargetPath)
	c.observer.Publish(progress.Event{
		Stage:    StageConvert,
		Message:  fmt.Sprintf("converting %s", source),
		Fraction: float64(index-1) / float64(total),
	})

	format, err := c.sourceFormat(ctx, job.Source)
	if err != nil {
		job.markFailed(err)
		return err
	}

	if err := c.qemu.ConvertToQCOW2(ctx, format, source, job.TargetPath); err != nil {
		job.markFailed(err)
		return err
	}

	// The converter is an opaque collaborator: a zero exit status with
	// no output file still counts as failure.
	info, err := os.Stat(job.TargetPath)
	if err != nil || info.Size() == 0 {
		cerr := &Error{
			Reason: ReasonEmptyOutput,
			Path:   source,
			Detail: fmt.Sprintf("qemu-img exited cleanly but %s is missing or empty", job.TargetPath),
		}
		job.markFailed(cerr)
		return cerr
	}

	if err := job.markDone(); err != nil {
		return err
	}
	c.observer.Publish(progress.Event{
		Stage:    StageConvert,
		Message:  fmt.Sprintf("converted %s", job.TargetPath),
		Fraction: float64(index) / float64(total),
	})
	return nil
}

// sourceFormat picks the -f argument for a disk. Descriptor-backed and
// sparse layouts are native vmdk; flat monolithic images are probed,
// falling back to raw when qemu-img cannot classify them.
func (c *Converter) sourceFormat(ctx context.Context, d *vmdk.Descriptor) (string, error) {
	switch d.Layout {
	case vmdk.LayoutSplit, vmdk.LayoutMonolithicSparse:
		return "vmdk", nil
	}

	format, err := c.qemu.ProbeFormat(ctx, d.Path)
	if err != nil {
		return "", err
	}
	if format == "" {
		return "raw", nil
	}
	return format, nil
}
