package domain

import (
	"fmt"
	"strings"
)

// ConfigError reports a missing or invalid setting. It is raised before any
// subprocess or network call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

type DumpError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *DumpError) Error() string {
	return processMessage("dump failed", e.ExitCode, e.Stderr, e.Err)
}

func (e *DumpError) Unwrap() error { return e.Err }

type CompressError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CompressError) Error() string {
	return processMessage("compress failed", e.ExitCode, e.Stderr, e.Err)
}

func (e *CompressError) Unwrap() error { return e.Err }

type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// CleanupWarning is logged and never changes the job outcome.
type CleanupWarning struct {
	Path string
	Err  error
}

func (e *CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupWarning) Unwrap() error { return e.Err }

func processMessage(prefix string, exitCode int, stderr string, err error) string {
	var b strings.Builder
	b.WriteString(prefix)
	if exitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", exitCode)
	}
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	if s := strings.TrimSpace(stderr); s != "" {
		fmt.Fprintf(&b, ", output: %s", s)
	}
	return b.String()
}
