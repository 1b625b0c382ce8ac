package executor

import (
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/graphexec/internal/language"
)

// shouldIncludeNode decides whether a field, fragment spread or inline
// fragment takes part in execution. @skip(if: true) excludes the node
// whatever else is present; @include(if: false) excludes it next. Custom
// directives with an Include hook are consulted last. Directives the schema
// does not know are ignored, as is a custom directive whose Include hook
// panics. That panic is reported in the response errors without a path.
func (ex *execution) shouldIncludeNode(directives language.DirectiveList) bool {
	if len(directives) == 0 {
		return true
	}
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := ex.directiveIf(skip); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := ex.directiveIf(include); ok && !v {
			return false
		}
	}
	for _, d := range directives {
		if d.Name == "skip" || d.Name == "include" {
			continue
		}
		def := ex.schema.Directives[d.Name]
		if def == nil || def.Include == nil {
			continue
		}
		args, err := coerceArgumentValues(ex.schema, def.Arguments, d.Arguments, ex.variables)
		if err != nil {
			ex.opts.logger.WithError(err).WithField("directive", d.Name).Warn("ignoring directive with invalid arguments")
			continue
		}
		include := true
		err = ex.protect("directive", logrus.Fields{"directive": d.Name}, func() error {
			include = def.Include(args)
			return nil
		})
		if err != nil {
			ex.addError(nil, nil, directiveError(d, err))
			continue
		}
		if !include {
			return false
		}
	}
	return true
}

// directiveError locates err at the directive, which has no response path.
func directiveError(d *language.Directive, err error) error {
	located := &gqlerror.Error{Message: err.Error(), Err: err}
	if d.Position != nil {
		located.Locations = []gqlerror.Location{{Line: d.Position.Line, Column: d.Position.Column}}
	}
	return located
}

// directiveIf reads the boolean "if" argument of d with variables
// substituted.
func (ex *execution) directiveIf(d *language.Directive) (value bool, ok bool) {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	raw, bound := valueFromAST(arg.Value, ex.variables)
	if !bound {
		return false, false
	}
	value, ok = raw.(bool)
	return value, ok
}
