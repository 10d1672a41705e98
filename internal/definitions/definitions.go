// Package definitions loads recurring routine and calendar definitions from
// YAML, CUE and ICS files.
//
// Definitions are supplied to the instance services, never stored. A file
// whose syntax or field values cannot be read fails the load. A definition
// whose pattern parses but does not validate (unknown kind, missing weekday)
// is kept and logged; the evaluator treats it as never due.
package definitions

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// Loader reads definition files.
type Loader struct {
	// Logger receives warnings about invalid patterns and skipped entries.
	// Nil means slog.Default().
	Logger *slog.Logger

	// Location is used to take the calendar date and time of day of ICS
	// events. Nil means UTC.
	Location *time.Location
}

// Extensions maps a recognised file extension to its format.
var Extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".cue":  FormatCUE,
	".ics":  FormatICS,
}

// Format names a definition file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
	FormatICS  Format = "ics"
)

// LoadFiles loads every path in order. Directories are walked for files
// with a recognised extension. Two definitions with the same kind and id
// are an error.
func (l *Loader) LoadFiles(paths ...string) ([]instance.Definition, error) {
	var all []instance.Definition
	seen := make(map[string]string)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("definitions path %s: %w", path, err)
		}

		var defs []instance.Definition
		if info.IsDir() {
			defs, err = l.LoadDir(path)
		} else {
			defs, err = l.LoadFile(path)
		}
		if err != nil {
			return nil, err
		}

		for _, def := range defs {
			key := string(def.Kind) + "/" + def.ID
			if prev, dup := seen[key]; dup {
				return nil, fmt.Errorf("duplicate definition %s (in %s and %s)", key, prev, path)
			}
			seen[key] = path
			all = append(all, def)
		}
	}
	return all, nil
}

// LoadDir loads every recognised file under dir, in lexical path order.
func (l *Loader) LoadDir(dir string) ([]instance.Definition, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := Extensions[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan definitions dir %s: %w", dir, err)
	}
	sort.Strings(files)

	var all []instance.Definition
	for _, file := range files {
		defs, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		all = append(all, defs...)
	}
	return all, nil
}

// LoadFile loads one file, picking the parser by extension.
func (l *Loader) LoadFile(path string) ([]instance.Definition, error) {
	format, ok := Extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("definitions file %s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions file: %w", err)
	}
	return l.Parse(path, format, data)
}

// Parse decodes data in the given format. name is used in errors and logs.
func (l *Loader) Parse(name string, format Format, data []byte) ([]instance.Definition, error) {
	var (
		defs []instance.Definition
		err  error
	)
	switch format {
	case FormatYAML:
		defs, err = l.parseYAML(name, data)
	case FormatCUE:
		defs, err = l.parseCUE(name, data)
	case FormatICS:
		defs, err = l.parseICS(name, data)
	default:
		return nil, fmt.Errorf("%s: unknown format %q", name, format)
	}
	if err != nil {
		return nil, err
	}

	for _, def := range defs {
		if verr := def.Pattern.Validate(); verr != nil {
			l.logger().Warn("definition will never be due",
				"file", name, "kind", def.Kind, "id", def.ID, "error", verr)
		}
	}
	return defs, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loader) location() *time.Location {
	if l.Location == nil {
		return time.UTC
	}
	return l.Location
}

// fileDoc is the shape shared by YAML and CUE definition files.
// The json tags serve CUE's Decode.
type fileDoc struct {
	Definitions []definitionDoc `yaml:"definitions" json:"definitions"`
}

type definitionDoc struct {
	ID        string     `yaml:"id" json:"id"`
	Kind      string     `yaml:"kind" json:"kind"`
	Name      string     `yaml:"name" json:"name"`
	Pattern   patternDoc `yaml:"pattern" json:"pattern"`
	TimeOfDay string     `yaml:"time_of_day" json:"time_of_day"`
	Assignee  string     `yaml:"assignee" json:"assignee"`
}

type patternDoc struct {
	Kind       string   `yaml:"kind" json:"kind"`
	Weekdays   []string `yaml:"weekdays" json:"weekdays"`
	DayOfMonth int      `yaml:"day_of_month" json:"day_of_month"`
	Month      int      `yaml:"month" json:"month"`
	Dates      []string `yaml:"dates" json:"dates"`
	RRule      string   `yaml:"rrule" json:"rrule"`
	Interval   int      `yaml:"interval" json:"interval"`
	Start      string   `yaml:"start" json:"start"`
}

func (doc fileDoc) definitions(name string) ([]instance.Definition, error) {
	out := make([]instance.Definition, 0, len(doc.Definitions))
	for i, d := range doc.Definitions {
		def, err := d.definition()
		if err != nil {
			return nil, fmt.Errorf("%s: definitions[%d]: %w", name, i, err)
		}
		out = append(out, def)
	}
	return out, nil
}

func (d definitionDoc) definition() (instance.Definition, error) {
	if d.ID == "" {
		return instance.Definition{}, fmt.Errorf("id is required")
	}

	kind := instance.Routine
	if d.Kind != "" {
		k, err := instance.ParseEntityType(d.Kind)
		if err != nil {
			return instance.Definition{}, fmt.Errorf("%s: %w", d.ID, err)
		}
		kind = k
	}

	pattern, err := d.Pattern.pattern()
	if err != nil {
		return instance.Definition{}, fmt.Errorf("%s: pattern: %w", d.ID, err)
	}

	def := instance.Definition{
		ID:       d.ID,
		Kind:     kind,
		Name:     d.Name,
		Pattern:  pattern,
		Assignee: d.Assignee,
	}
	if def.Name == "" {
		def.Name = d.ID
	}
	if d.TimeOfDay != "" {
		tod, err := recurrence.ParseTimeOfDay(d.TimeOfDay)
		if err != nil {
			return instance.Definition{}, fmt.Errorf("%s: %w", d.ID, err)
		}
		def.TimeOfDay = &tod
	}
	return def, nil
}

func (p patternDoc) pattern() (recurrence.Pattern, error) {
	out := recurrence.Pattern{
		Kind:       recurrence.Kind(strings.ToLower(p.Kind)),
		DayOfMonth: p.DayOfMonth,
		Month:      time.Month(p.Month),
		RRule:      p.RRule,
		Interval:   p.Interval,
	}
	for _, name := range p.Weekdays {
		wd, err := ParseWeekday(name)
		if err != nil {
			return recurrence.Pattern{}, err
		}
		out.Weekdays = append(out.Weekdays, wd)
	}
	for _, s := range p.Dates {
		d, err := recurrence.ParseDate(s)
		if err != nil {
			return recurrence.Pattern{}, err
		}
		out.Dates = append(out.Dates, d)
	}
	if p.Start != "" {
		start, err := recurrence.ParseDate(p.Start)
		if err != nil {
			return recurrence.Pattern{}, err
		}
		out.Start = start
	}
	return out, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts English weekday names and their common
// abbreviations, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}
