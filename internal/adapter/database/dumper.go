package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

// Invocation is a resolved dump command: an argument vector plus extra
// environment. Nothing in it is ever interpreted by a shell.
type Invocation struct {
	Args []string
	Env  []string
}

// Preset knows how to turn a connection string into dump arguments for one
// database type.
type Preset interface {
	Type() string
	DefaultCommand() string
	Extension() string
	Connect(conn string) (Invocation, error)
}

// CommandDumper runs an external dump tool and redirects its stdout into the
// target file.
type CommandDumper struct {
	preset    Preset
	command   []string
	conn      string
	extension string
	logger    Logger
}

type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

func New(cfg *config.Config, logger Logger) (*CommandDumper, error) {
	preset, err := PresetFor(cfg.Database.Type)
	if err != nil {
		return nil, err
	}
	return NewCommandDumper(preset, cfg.Database.DumpCommand, cfg.Database.URL, cfg.Backup.Extension, logger)
}

func PresetFor(dbType string) (Preset, error) {
	switch dbType {
	case "postgresql", "postgres":
		return PostgreSQL{}, nil
	case "mysql":
		return MySQL{}, nil
	case "mongodb":
		return MongoDB{}, nil
	}
	return nil, &domain.ConfigError{Field: "database.type", Reason: fmt.Sprintf("unsupported type %q", dbType)}
}

// NewCommandDumper splits the command template into words. An empty template
// selects the preset default; an empty extension selects the preset's.
func NewCommandDumper(preset Preset, template, conn, extension string, logger Logger) (*CommandDumper, error) {
	if template == "" {
		template = preset.DefaultCommand()
	}
	words, err := shellwords.Parse(template)
	if err != nil {
		return nil, &domain.ConfigError{Field: "database.dump_command", Reason: err.Error()}
	}
	if len(words) == 0 {
		return nil, &domain.ConfigError{Field: "database.dump_command", Reason: "is empty"}
	}
	if conn == "" {
		return nil, &domain.ConfigError{Field: "database.url", Reason: "is required"}
	}
	if extension == "" {
		extension = preset.Extension()
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	d := &CommandDumper{
		preset:    preset,
		command:   words,
		conn:      conn,
		extension: extension,
		logger:    logger,
	}
	if err := d.Preflight(); err != nil {
		return nil, err
	}
	return d, nil
}

// Preflight checks that the connection string can be turned into tool
// arguments.
func (d *CommandDumper) Preflight() error {
	_, err := d.preset.Connect(d.conn)
	return err
}

func (d *CommandDumper) Extension() string {
	return d.extension
}

func (d *CommandDumper) GetType() string {
	return d.preset.Type()
}

// Dump writes the tool's stdout to targetPath. Text on stderr after a zero
// exit is reported as a warning only; some tools print advisories on success.
func (d *CommandDumper) Dump(ctx context.Context, targetPath string) (int64, error) {
	inv, err := d.preset.Connect(d.conn)
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, &domain.DumpError{Err: fmt.Errorf("failed to create dump file: %w", err)}
	}

	args := append(append([]string{}, d.command[1:]...), inv.Args...)
	cmd := exec.CommandContext(ctx, d.command[0], args...)
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	closeErr := out.Close()

	if runErr != nil {
		dumpErr := &domain.DumpError{Stderr: strings.TrimSpace(stderr.String()), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			dumpErr.ExitCode = exitErr.ExitCode()
		}
		return 0, dumpErr
	}
	if closeErr != nil {
		return 0, &domain.DumpError{Err: fmt.Errorf("failed to close dump file: %w", closeErr)}
	}

	if warn := strings.TrimSpace(stderr.String()); warn != "" {
		d.logger.Warnw("Dump tool reported diagnostics; verify the dump contains all needed data",
			"tool", d.command[0], "stderr", warn, "path", targetPath)
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		return 0, &domain.DumpError{Err: fmt.Errorf("failed to stat dump file: %w", err)}
	}
	if info.Size() == 0 {
		return 0, &domain.DumpError{Stderr: strings.TrimSpace(stderr.String()), Err: errors.New("dump file is empty")}
	}

	return info.Size(), nil
}
