package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roach88/hearth/internal/config"
	"github.com/roach88/hearth/internal/definitions"
	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
	"github.com/roach88/hearth/internal/store"
)

// env is the service wiring for one command invocation.
type env struct {
	cfg    *config.Config
	loc    *time.Location
	clock  instance.Clock
	logger *slog.Logger

	store     *store.Store
	lifecycle *instance.LifecycleManager
	resolver  *instance.Resolver
	coverage  *instance.CoverageCoordinator
	notes     *instance.Notes
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.Config
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.DB != "" {
		cfg.Database = o.DB
	}
	if o.TZ != "" {
		cfg.Timezone = o.TZ
	}
	if len(o.Defs) > 0 {
		cfg.Definitions = o.Defs
	}
	if o.As != "" {
		cfg.Member = o.As
	}
	return cfg, nil
}

// openEnv loads configuration and opens the database.
// The caller must Close the returned env.
func openEnv(o *RootOptions) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid timezone", err)
	}

	logger := o.Logger()
	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var clock instance.Clock = instance.SystemClock{}
	if o.Clock != nil {
		clock = o.Clock
	}
	opts := []instance.Option{
		instance.WithLocation(loc),
		instance.WithClock(clock),
	}
	if o.IDs != nil {
		opts = append(opts, instance.WithIDGenerator(o.IDs))
	}

	return &env{
		cfg:       cfg,
		loc:       loc,
		clock:     clock,
		logger:    logger,
		store:     st,
		lifecycle: instance.NewLifecycleManager(st, opts...),
		resolver:  instance.NewResolver(st, opts...),
		coverage:  instance.NewCoverageCoordinator(st, opts...),
		notes:     instance.NewNotes(st, opts...),
	}, nil
}

// Close releases the database.
func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// actor is the acting household member, possibly empty.
func (e *env) actor() string {
	return e.cfg.Member
}

// today is the current date in the household timezone.
func (e *env) today() recurrence.Date {
	return recurrence.DateOf(e.clock.Now().In(e.loc))
}

// definitions loads the configured definition paths. Paths that do not
// exist are skipped with a warning so a fresh household works without any.
func (e *env) definitions() ([]instance.Definition, error) {
	var paths []string
	for _, p := range e.cfg.Definitions {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("definitions path does not exist", "path", p)
			continue
		}
		paths = append(paths, p)
	}

	loader := &definitions.Loader{Logger: e.logger, Location: e.loc}
	defs, err := loader.LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("definitions loaded", "count", len(defs), "paths", paths)
	return defs, nil
}

// instanceID returns the stored id for key. A key without a row is
// NOT_FOUND for note operations.
func (e *env) instanceID(ctx context.Context, op string, key instance.Key) (string, error) {
	inst, err := e.store.Find(ctx, key)
	if errors.Is(err, instance.ErrNotFound) {
		return "", &instance.Error{
			Code:    instance.ErrCodeNotFound,
			Op:      op,
			Message: fmt.Sprintf("%s has no stored instance", key),
			Err:     err,
		}
	}
	if err != nil {
		return "", &instance.Error{Code: instance.ErrCodeStoreFailure, Op: op, Message: "store call failed", Err: err}
	}
	return inst.ID, nil
}

func invalidArgument(op, message string, err error) *instance.Error {
	return &instance.Error{Code: instance.ErrCodeInvalidArgument, Op: op, Message: message, Err: err}
}

// parseDate accepts YYYY-MM-DD, "today", "tomorrow" and "yesterday".
func parseDate(s string, today recurrence.Date) (recurrence.Date, error) {
	switch strings.ToLower(s) {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	d, err := recurrence.ParseDate(s)
	if err != nil {
		return recurrence.Date{}, invalidArgument("parse arguments", fmt.Sprintf("invalid date %q", s), err)
	}
	return d, nil
}

// parseKey builds an instance key from "<type> <id> <date>" arguments.
func parseKey(kind, id, date string, today recurrence.Date) (instance.Key, error) {
	et, err := instance.ParseEntityType(kind)
	if err != nil {
		return instance.Key{}, err
	}
	d, err := parseDate(date, today)
	if err != nil {
		return instance.Key{}, err
	}
	return instance.Key{EntityType: et, EntityID: id, Date: d}, nil
}

// parseTarget reads a defer or reschedule target: RFC 3339, a local
// "2006-01-02T15:04", or a bare "15:04" on date.
func parseTarget(s string, date recurrence.Date, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, loc); err == nil {
		return t, nil
	}
	if tod, err := recurrence.ParseTimeOfDay(s); err == nil {
		return tod.On(date, loc), nil
	}
	return time.Time{}, invalidArgument("parse arguments",
		fmt.Sprintf("invalid target %q: want RFC 3339, 2006-01-02T15:04 or 15:04", s), nil)
}
