// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package executil runs commands on the local machine and on remote hosts
// over SSH, with per-call timeouts and full output capture.
package executil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// DefaultTimeout bounds every command unless the caller overrides it.
const DefaultTimeout = 600 * time.Second

// Host contains the necessary information to connect to a server using SSH
// and run commands on it.
type Host struct {
	Name     string
	Username string
	Port     int
}

// HostFromServer builds a Host from a server row and the environment's remote user.
func HostFromServer(server *model.Server, username string) Host {
	port := server.Port
	if port == 0 {
		port = 22
	}
	return Host{Name: server.Name, Username: username, Port: port}
}

// Result is the outcome of a command execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecCmd executes a command on the local machine. On timeout the process is
// killed and the result carries exit code 1 with a stderr explaining the
// timeout. ExecCmd never returns an error: failures are encoded in the result
// so callers can turn them into deployment log entries.
func ExecCmd(cmd []string, workingDirectory string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if len(cmd) == 0 {
		return Result{ExitCode: 1, Stderr: "empty command"}
	}

	c := exec.Command(cmd[0], cmd[1:]...)
	c.Dir = workingDirectory
	var stdout, stderr lockedBuffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Start(); err != nil {
		log.Errorf("error:[%s] cmd:[%v]", err, cmd)
		return Result{ExitCode: 1, Stderr: err.Error()}
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	select {
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = 1
			}
		}
		log.Debugf("cmd:[%v] exit:[%d]", cmd, exitCode)
		return Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}
	case <-time.After(timeout):
		_ = c.Process.Kill()
		<-done
		out := stdout.String()
		errOut := stderr.String()
		log.Errorf("cmd:[%v] timeout! so far: stdout:[%s] stderr:[%s]", cmd, out, errOut)
		return Result{
			ExitCode: 1,
			Stdout:   out,
			Stderr:   fmt.Sprintf("Timeout (the command took more than %ds to return)\n\n%s", int(timeout.Seconds()), errOut),
		}
	}
}

// RunCmdBySSH runs a command on the remote host, wrapping it with ssh.
func RunCmdBySSH(host Host, cmd []string, timeout time.Duration) Result {
	fullCmd := append([]string{
		"ssh",
		fmt.Sprintf("%s@%s", host.Username, host.Name),
		"-p", strconv.Itoa(host.Port),
	}, cmd...)
	return ExecCmd(fullCmd, "", timeout)
}

// ExecScript runs a local shell script if it exists. A missing script is not
// an error: the result carries exit code 0 and an explanatory stdout.
func ExecScript(workingDirectory, scriptName string, params []string) Result {
	path := filepath.Join(workingDirectory, scriptName)
	if _, err := os.Stat(path); err != nil {
		return Result{ExitCode: 0, Stdout: fmt.Sprintf("No script '%s'.", scriptName)}
	}
	cmd := append([]string{"bash", scriptName}, params...)
	return ExecCmd(cmd, workingDirectory, DefaultTimeout)
}

// RemoteFileExists returns true if 'ssh user@host stat path' exits with code 0.
func RemoteFileExists(path string, host Host) bool {
	res := RunCmdBySSH(host, []string{"stat", path}, DefaultTimeout)
	return res.ExitCode == 0
}

// ExecScriptRemote runs a script on a remote host using SSH, after probing
// its existence with stat. A missing script is not an error.
func ExecScriptRemote(host Host, remoteWorkingDirectory, scriptName string, params []string) Result {
	if !RemoteFileExists(filepath.Join(remoteWorkingDirectory, scriptName), host) {
		return Result{ExitCode: 0, Stdout: fmt.Sprintf("No remote script '%s'", scriptName)}
	}
	cmd := append([]string{"cd", remoteWorkingDirectory, "&&", "bash", scriptName}, params...)
	return RunCmdBySSH(host, cmd, DefaultTimeout)
}

// Capture turns a command result into deployment log entries. A non-zero exit
// code produces error entries; stderr with a zero exit code is a warning.
func Capture(prefix string, res Result) []*model.LogEntry {
	var entries []*model.LogEntry
	if len(res.Stdout) > 0 {
		entries = append(entries, model.NewLogEntry(fmt.Sprintf("%s: %s", prefix, res.Stdout)))
	}
	if len(res.Stderr) > 0 {
		severity := model.SeverityWarn
		if res.ExitCode != 0 {
			severity = model.SeverityError
		}
		entries = append(entries, model.NewLogEntryWithSeverity(fmt.Sprintf("%s: %s", prefix, res.Stderr), severity))
	}
	if res.ExitCode != 0 {
		entries = append(entries, model.NewLogEntryWithSeverity(
			fmt.Sprintf("%s: exited with code %d", prefix, res.ExitCode), model.SeverityError))
	}
	return entries
}

// lockedBuffer guards concurrent writes from the stdout/stderr pipes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// QuoteCommand renders a command for logging.
func QuoteCommand(cmd []string) string {
	return strings.Join(cmd, " ")
}
