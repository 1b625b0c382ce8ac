package executor

import (
	"fmt"
	"strings"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

// collectedField is one response key together with every AST field that
// contributes to it.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// definition is the occurrence whose name and arguments are used when the
// key is resolved: the last one in document order.
func (cf collectedField) definition() *language.Field {
	return cf.Fields[len(cf.Fields)-1]
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// fieldCollector flattens selection sets for one concrete object type.
type fieldCollector struct {
	ex      *execution
	object  *schema.Type
	out     *collectedFieldMap
	visited map[string]bool
	active  []string
}

// collectFields merges the given selection sets for object into an ordered
// list of response keys. Fragments whose type condition does not apply to
// object are dropped, as are nodes excluded by directives.
func (ex *execution) collectFields(object *schema.Type, sets ...language.SelectionSet) []collectedField {
	c := &fieldCollector{
		ex:      ex,
		object:  object,
		out:     newCollectedFieldMap(),
		visited: make(map[string]bool),
	}
	for _, set := range sets {
		c.collect(set)
	}
	return c.out.orderedFields()
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !c.ex.shouldIncludeNode(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			c.out.add(responseName, sel)

		case *language.InlineFragment:
			if !c.ex.shouldIncludeNode(sel.Directives) {
				continue
			}
			if !c.ex.schema.DoesFragmentTypeApply(c.object, sel.TypeCondition) {
				continue
			}
			c.collect(sel.SelectionSet)

		case *language.FragmentSpread:
			if !c.ex.shouldIncludeNode(sel.Directives) {
				continue
			}
			c.spread(sel.Name)
		}
	}
}

func (c *fieldCollector) spread(name string) {
	for i, active := range c.active {
		if active == name {
			cycle := append(append([]string(nil), c.active[i:]...), name)
			panic(fatal{err: fmt.Errorf("%w: %s", ErrFragmentCycle, strings.Join(cycle, " -> "))})
		}
	}
	if c.visited[name] {
		return
	}
	c.visited[name] = true

	def := c.ex.document.Fragments.ForName(name)
	if def == nil {
		return
	}
	if !c.ex.schema.DoesFragmentTypeApply(c.object, def.TypeCondition) {
		return
	}
	if !c.ex.shouldIncludeNode(def.Directives) {
		return
	}

	c.active = append(c.active, name)
	c.collect(def.SelectionSet)
	c.active = c.active[:len(c.active)-1]
}

// subSelections returns the selection sets of every occurrence of a field.
func subSelections(fields []*language.Field) []language.SelectionSet {
	sets := make([]language.SelectionSet, 0, len(fields))
	for _, f := range fields {
		if len(f.SelectionSet) > 0 {
			sets = append(sets, f.SelectionSet)
		}
	}
	return sets
}
