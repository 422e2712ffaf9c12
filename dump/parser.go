package dump

import (
	"fmt"
	"strings"

	"github.com/biscuitwizard/vcscore/vcserr"
)

// TextParser is a small reference implementation of Parser for the
// line-oriented dump language spec.md's own examples use (e.g.
// "object #1 property x = 1 endobject"). The real dump-language parser
// is an external collaborator (spec.md §1); this exists so the core
// and its tests have a concrete, pure Parser to invoke without
// depending on that external component.
type TextParser struct{}

// Parse implements Parser. Grammar, one token stream, whitespace
// insignificant between tokens:
//
//	object <name> [parent <name>]
//	  property <name> = <value>
//	  verb <name>
//	  <code lines>
//	  endverb
//	endobject
func (TextParser) Parse(text string) (Dump, error) {
	fields := strings.Fields(text)
	var d Dump
	i := 0
	next := func() (string, bool) {
		if i >= len(fields) {
			return "", false
		}
		f := fields[i]
		i++
		return f, true
	}

	tok, ok := next()
	if !ok || tok != "object" {
		return Dump{}, vcserr.Wrap(vcserr.KindMalformedDump, "expected 'object'", fmt.Errorf("got %q", tok))
	}
	name, ok := next()
	if !ok {
		return Dump{}, vcserr.New(vcserr.KindMalformedDump, "missing object name")
	}
	d.Name = name

	for {
		tok, ok = next()
		if !ok {
			return Dump{}, vcserr.New(vcserr.KindMalformedDump, "unterminated object: missing endobject")
		}
		switch tok {
		case "parent":
			parent, ok := next()
			if !ok {
				return Dump{}, vcserr.New(vcserr.KindMalformedDump, "missing parent name")
			}
			d.Parent = parent
		case "property":
			pname, ok := next()
			if !ok {
				return Dump{}, vcserr.New(vcserr.KindMalformedDump, "missing property name")
			}
			eq, ok := next()
			if !ok || eq != "=" {
				return Dump{}, vcserr.New(vcserr.KindMalformedDump, "expected '=' after property name")
			}
			val, ok := next()
			if !ok {
				return Dump{}, vcserr.New(vcserr.KindMalformedDump, "missing property value")
			}
			d.Properties = append(d.Properties, Property{Name: pname, Value: val})
		case "verb":
			vname, ok := next()
			if !ok {
				return Dump{}, vcserr.New(vcserr.KindMalformedDump, "missing verb name")
			}
			var code []string
			for {
				t, ok := next()
				if !ok {
					return Dump{}, vcserr.New(vcserr.KindMalformedDump, "unterminated verb: missing endverb")
				}
				if t == "endverb" {
					break
				}
				code = append(code, t)
			}
			d.Verbs = append(d.Verbs, Verb{Name: vname, Code: strings.Join(code, " ")})
		case "endobject":
			return d, nil
		default:
			return Dump{}, vcserr.Wrap(vcserr.KindMalformedDump, "unexpected token", fmt.Errorf("%q", tok))
		}
	}
}
