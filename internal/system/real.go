package system

import (
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Real is the production System backed directly by the os package.
type Real struct{}

// NewReal constructs a Real system.
func NewReal() Real { return Real{} }

func (Real) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (Real) Create(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func (Real) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (Real) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (Real) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (Real) Remove(path string) error {
	return os.Remove(path)
}

func (Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (Real) Rename(from, to string) error {
	return os.Rename(from, to)
}

func (Real) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (Real) IsExecutable(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&0o111 != 0, nil
}

func (Real) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (Real) SetExecutable(path string, executable bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if executable {
		mode |= 0o111
	} else {
		mode &^= 0o111
	}
	return os.Chmod(path, mode)
}

// Execute runs commandLine[0] with commandLine[1:] as arguments. No
// shell is involved: the rule's command lines are passed straight
// through to exec.Command as argv.
func (Real) Execute(commandLine []string) (CommandLineOutput, error) {
	if len(commandLine) == 0 {
		return CommandLineOutput{Success: true, HasCode: true, Code: 0}, nil
	}
	cmd := exec.Command(commandLine[0], commandLine[1:]...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	out := CommandLineOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		out.HasCode = true
		out.Code = exitErr.ExitCode()
		out.Success = false
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.HasCode = true
	out.Code = 0
	out.Success = true
	return out, nil
}
