package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Conversion error reason codes.
const (
	ReasonQemuImgFailed = "qemu_img_failed"
	ReasonEmptyOutput   = "empty_output"
)

// Error is a disk conversion failure with a stable reason code.
type Error struct {
	Reason string
	Path   string // source disk path
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("conversion error (%s): %s: %s", e.Reason, e.Path, e.Detail)
}

// Command is a typed subprocess invocation: a binary and an argument
// list. Commands are never assembled as shell strings, so paths with
// spaces or shell metacharacters pass through untouched.
type Command struct {
	Binary string
	Args   []string
}

// Runner executes commands. The production runner shells out; tests
// substitute their own.
type Runner interface {
	// Run executes the command and returns its combined output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Cancelling the context
// terminates the subprocess.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	return exec.CommandContext(ctx, cmd.Binary, cmd.Args...).CombinedOutput()
}

// QemuImg wraps the qemu-img external converter.
type QemuImg struct {
	Binary string
	Runner Runner
}

// NewQemuImg returns a qemu-img wrapper using the given binary name or
// path and the real subprocess runner.
func NewQemuImg(binary string) *QemuImg {
	return &QemuImg{Binary: binary, Runner: ExecRunner{}}
}

// Version checks that the qemu-img binary is runnable.
func (q *QemuImg) Version(ctx context.Context) (string, error) {
	out, err := q.Runner.Run(ctx, Command{Binary: q.Binary, Args: []string{"--version"}})
	if err != nil {
		return "", fmt.Errorf("qemu-img not available (install qemu-utils / qemu-img): %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// qemuImgInfo is the subset of `qemu-img info --output=json` consumed
// here.
type qemuImgInfo struct {
	Format string `json:"format"`
}

// ProbeFormat asks qemu-img for the detected format of a disk file.
func (q *QemuImg) ProbeFormat(ctx context.Context, path string) (string, error) {
	out, err := q.Runner.Run(ctx, Command{
		Binary: q.Binary,
		Args:   []string{"info", "--output=json", path},
	})
	if err != nil {
		return "", &Error{
			Reason: ReasonQemuImgFailed,
			Path:   path,
			Detail: fmt.Sprintf("qemu-img info failed: %v: %s", err, strings.TrimSpace(string(out))),
		}
	}

	var info qemuImgInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return "", &Error{
			Reason: ReasonQemuImgFailed,
			Path:   path,
			Detail: fmt.Sprintf("unparsable qemu-img info output: %v", err),
		}
	}
	if info.Format == "" {
		return "", &Error{
			Reason: ReasonQemuImgFailed,
			Path:   path,
			Detail: "qemu-img info reported no format",
		}
	}
	return info.Format, nil
}

// ConvertToQCOW2 converts source (of the given format) into a qcow2
// image at target. A nonzero exit status is a conversion error; no
// automatic retry is attempted, since failures are usually
// deterministic and large images make blind retries expensive.
func (q *QemuImg) ConvertToQCOW2(ctx context.Context, sourceFormat, source, target string) error {
	out, err := q.Runner.Run(ctx, Command{
		Binary: q.Binary,
		Args:   []string{"convert", "-f", sourceFormat, "-O", "qcow2", source, target},
	})
	if err != nil {
		return &Error{
			Reason: ReasonQemuImgFailed,
			Path:   source,
			Detail: fmt.Sprintf("qemu-img convert failed: %v: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return nil
}
