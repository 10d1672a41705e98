package definitions

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/hearth/internal/instance"
)

//go:embed schema.cue
var schemaSource []byte

func (l *Loader) parseCUE(name string, data []byte) ([]instance.Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile definitions schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(name))
	if err := file.Err(); err != nil {
		return nil, formatCUEError(name, err)
	}

	v := schema.LookupPath(cue.ParsePath("#File")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}

	var doc fileDoc
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(name, err)
	}
	return doc.definitions(name)
}

// formatCUEError reports the first CUE error with its position.
func formatCUEError(name string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", name, err)
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		pos := positions[0]
		return fmt.Errorf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return fmt.Errorf("%s: %w", name, first)
}
