package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
)

// fakeRunner records commands and delegates behavior to onRun.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	onRun    func(cmd Command) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	return f.onRun(cmd)
}

func (f *fakeRunner) recorded() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// flatDescriptor writes a one-sector flat image and reads it back.
func flatDescriptor(t *testing.T, dir string) *vmdk.Descriptor {
	t.Helper()
	path := filepath.Join(dir, "disk.vmdk")
	data := make([]byte, 512)
	data[510], data[511] = 0x55, 0xaa
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	d, err := vmdk.ReadDescriptor(path)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// succeedingRunner probes as raw and writes a non-empty target on
// convert.
func succeedingRunner() *fakeRunner {
	f := &fakeRunner{}
	f.onRun = func(cmd Command) ([]byte, error) {
		switch cmd.Args[0] {
		case "info":
			return []byte(`{"format": "raw", "virtual-size": 512}`), nil
		case "convert":
			target := cmd.Args[len(cmd.Args)-1]
			return nil, os.WriteFile(target, []byte("qcow2-data"), 0644)
		}
		return nil, fmt.Errorf("unexpected command %v", cmd.Args)
	}
	return f
}

func TestConverterRun(t *testing.T) {
	dir := t.TempDir()
	runner := succeedingRunner()
	qemu := &QemuImg{Binary: "qemu-img", Runner: runner}

	job := NewJob(flatDescriptor(t, dir), filepath.Join(dir, "disk.qcow2"))
	c := New(qemu, 1, nil)

	if err := c.Run(context.Background(), []*Job{job}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if job.State() != JobDone {
		t.Errorf("job state = %s, want done", job.State())
	}

	cmds := runner.recorded()
	if len(cmds) != 2 {
		t.Fatalf("recorded %d commands, want 2 (info + convert)", len(cmds))
	}
	convertArgs := strings.Join(cmds[1].Args, " ")
	want := fmt.Sprintf("convert -f raw -O qcow2 %s %s",
		job.Source.Path, job.TargetPath)
	if convertArgs != want {
		t.Errorf("convert args = %q, want %q", convertArgs, want)
	}
}

func TestConverterSplitUsesVMDKFormat(t *testing.T) {
	dir := t.TempDir()
	extent := make([]byte, 512)
	if err := os.WriteFile(filepath.Join(dir, "d-f001.vmdk"), extent, 0644); err != nil {
		t.Fatal(err)
	}
	descriptor := `createType="twoGbMaxExtentFlat"
RW 1 FLAT "d-f001.vmdk" 0
`
	path := filepath.Join(dir, "d.vmdk")
	if err := os.WriteFile(path, []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := vmdk.ReadDescriptor(path)
	if err != nil {
		t.Fatal(err)
	}

	runner := succeedingRunner()
	qemu := &QemuImg{Binary: "qemu-img", Runner: runner}
	job := NewJob(d, filepath.Join(dir, "d.qcow2"))

	if err := New(qemu, 1, nil).Run(context.Background(), []*Job{job}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	cmds := runner.recorded()
	// No probe for descriptor-backed disks: one convert command.
	if len(cmds) != 1 {
		t.Fatalf("recorded %d commands, want 1", len(cmds))
	}
	args := strings.Join(cmds[0].Args, " ")
	if !strings.Contains(args, "-f vmdk") {
		t.Errorf("convert args = %q, want -f vmdk", args)
	}
}

func TestConverterFailureAbortsPending(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	runner.onRun = func(cmd Command) ([]byte, error) {
		if cmd.Args[0] == "info" {
			return []byte(`{"format": "raw"}`), nil
		}
		return []byte("qemu-img: error while converting"), errors.New("exit status 1")
	}
	qemu := &QemuImg{Binary: "qemu-img", Runner: runner}

	first := NewJob(flatDescriptor(t, dir), filepath.Join(dir, "a.qcow2"))
	second := NewJob(first.Source, filepath.Join(dir, "b.qcow2"))

	err := New(qemu, 1, nil).Run(context.Background(), []*Job{first, second})
	if err == nil {
		t.Fatal("Run() = nil, want conversion error")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *convert.Error", err)
	}
	if cerr.Reason != ReasonQemuImgFailed {
		t.Errorf("reason = %q, want %s", cerr.Reason, ReasonQemuImgFailed)
	}

	if first.State() != JobFailed {
		t.Errorf("first job state = %s, want failed", first.State())
	}
	if second.State() != JobPending {
		t.Errorf("second job state = %s, want pending (aborted before start)", second.State())
	}
}

func TestConverterEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	runner.onRun = func(cmd Command) ([]byte, error) {
		if cmd.Args[0] == "info" {
			return []byte(`{"format": "raw"}`), nil
		}
		return nil, nil // clean exit, no file written
	}
	qemu := &QemuImg{Binary: "qemu-img", Runner: runner}

	job := NewJob(flatDescriptor(t, dir), filepath.Join(dir, "out.qcow2"))
	err := New(qemu, 1, nil).Run(context.Background(), []*Job{job})
	if err == nil {
		t.Fatal("Run() = nil, want empty output error")
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Reason != ReasonEmptyOutput {
		t.Errorf("error = %v, want reason %s", err, ReasonEmptyOutput)
	}
	if job.State() != JobFailed {
		t.Errorf("job state = %s, want failed", job.State())
	}
}

func TestJobTerminalStatesImmutable(t *testing.T) {
	j := NewJob(&vmdk.Descriptor{Path: "d.vmdk"}, "d.qcow2")

	if err := j.markConverting(); err != nil {
		t.Fatalf("markConverting() error = %v", err)
	}
	if err := j.markDone(); err != nil {
		t.Fatalf("markDone() error = %v", err)
	}

	// A failure after done must not change the state.
	j.markFailed(errors.New("late failure"))
	if j.State() != JobDone {
		t.Errorf("state = %s, want done to stay done", j.State())
	}
	if err := j.markConverting(); err == nil {
		t.Error("markConverting() on done job = nil, want error")
	}
}

func TestProbeFormat(t *testing.T) {
	runner := &fakeRunner{}
	runner.onRun = func(cmd Command) ([]byte, error) {
		return []byte(`{"format": "vmdk"}`), nil
	}
	qemu := &QemuImg{Binary: "qemu-img", Runner: runner}

	format, err := qemu.ProbeFormat(context.Background(), "x.vmdk")
	if err != nil {
		t.Fatalf("ProbeFormat() error = %v", err)
	}
	if format != "vmdk" {
		t.Errorf("format = %q, want vmdk", format)
	}
}
