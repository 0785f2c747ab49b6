package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/amanthanvi/registry/internal/config"
	logpkg "github.com/amanthanvi/registry/internal/log"
	"github.com/amanthanvi/registry/internal/storage"
	"github.com/google/uuid"
)

var (
	loadConfigFn = config.Load
	openStoreFn  = storage.Open
)

// session is everything a member command needs for one invocation: the
// resolved config, a logger tagged with the invocation id and the open store.
type session struct {
	cfg     config.Config
	report  config.LoadReport
	logger  *slog.Logger
	store   *storage.Store
	members *app.MemberService
}

func loadOptions(globals *GlobalOptions) config.LoadOptions {
	opts := config.LoadOptions{}
	if globals == nil {
		return opts
	}
	opts.ConfigPath = strings.TrimSpace(globals.ConfigPath)
	opts.EnvFile = strings.TrimSpace(globals.EnvFile)
	if dataDir := strings.TrimSpace(globals.DataDir); dataDir != "" {
		opts.Flags.DataDir = &dataDir
	}
	if level := strings.TrimSpace(globals.LogLevel); level != "" {
		opts.Flags.LogLevel = &level
	}
	return opts
}

func newInvocationLogger(cfg config.Config, deps commandDeps, command string) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logpkg.New(cfg.Logging, deps.errOut)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return logger.With("invocation_id", uuid.NewString(), "command", command), closer, nil
}

// withSession loads config, opens the store and runs fn. The store is
// closed when fn returns; a store that cannot be opened fails the command.
func withSession(cmdCtx context.Context, deps commandDeps, command string, fn func(context.Context, *session) error) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	cfg, report, err := loadConfigFn(loadOptions(deps.globals))
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, closer, err := newInvocationLogger(cfg, deps, command)
	if err != nil {
		return mapCommandError(err)
	}
	defer closer.Close()

	store, err := openStoreFn(cfg.Storage.DataDir)
	if err != nil {
		logger.Error("open store failed", "data_dir", cfg.Storage.DataDir, "error", err)
		return mapCommandError(fmt.Errorf("open registry in %s: %w", cfg.Storage.DataDir, err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store failed", "error", err)
		}
	}()

	s := &session{
		cfg:     cfg,
		report:  report,
		logger:  logger,
		store:   store,
		members: app.NewMemberService(store.Members, logger),
	}
	logger.Debug("command started", "data_dir", cfg.Storage.DataDir)
	return mapCommandError(fn(cmdCtx, s))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func boolToState(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func parseMemberID(command string, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("%s requires a positive numeric member id, got %q", command, raw)
	}
	return id, nil
}
