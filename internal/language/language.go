package language

import (
	"errors"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ParseQuery parses an executable document without validating it.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses SDL without the builtin prelude.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL together with the builtin prelude
// (scalars, @skip, @include, @deprecated, introspection types).
func LoadSchema(name, source string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParseAndValidate parses query and runs the standard validation rules
// against s. A nil document is returned whenever errs is non-empty.
func ParseAndValidate(s *Schema, query string) (*QueryDocument, ErrorList) {
	doc, errs := gqlparser.LoadQuery(s, query)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// Validate runs the standard validation rules against an already parsed
// document.
func Validate(s *Schema, doc *QueryDocument) ErrorList {
	if s == nil || doc == nil {
		return nil
	}
	return validator.Validate(s, doc)
}

// AsError converts any error returned by this package into a located
// GraphQL error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return ge
	}
	return &gqlerror.Error{Message: err.Error(), Err: err}
}
