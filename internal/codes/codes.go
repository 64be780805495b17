// Package codes provides bidirectional lookup tables between numeric
// feature-service codes and their human-readable labels.
package codes

import (
	"github.com/rotisserie/eris"
)

// NotApplicable is the display text for a code configured with an empty label.
const NotApplicable = "N/A"

// Pair is one configured (code, label) mapping.
type Pair struct {
	Code  int    `yaml:"code" mapstructure:"code"`
	Label string `yaml:"label" mapstructure:"label"`
}

// Lookup maps codes to labels and labels back to codes. Built once at
// startup from configured pairs; read-only afterwards.
type Lookup struct {
	name    string
	byCode  map[int]string
	byLabel map[string]int
}

// New builds a Lookup from ordered pairs. The name is used in error
// messages ("priority", "assignment_type"). A duplicate code or duplicate
// non-empty label is a configuration error.
func New(name string, pairs []Pair) (*Lookup, error) {
	l := &Lookup{
		name:    name,
		byCode:  make(map[int]string, len(pairs)),
		byLabel: make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		if _, ok := l.byCode[p.Code]; ok {
			return nil, eris.Errorf("codes: duplicate %s code %d", name, p.Code)
		}
		label := p.Label
		if label == "" {
			label = NotApplicable
		}
		l.byCode[p.Code] = label
		if p.Label != "" {
			if _, ok := l.byLabel[p.Label]; ok {
				return nil, eris.Errorf("codes: duplicate %s label %q", name, p.Label)
			}
			l.byLabel[p.Label] = p.Code
		}
	}
	return l, nil
}

// MustNew is New but panics on error. For statically known tables in tests.
func MustNew(name string, pairs []Pair) *Lookup {
	l, err := New(name, pairs)
	if err != nil {
		panic(err)
	}
	return l
}

// Label returns the display label for a code. An unconfigured code is a
// hard error, never a silent default.
func (l *Lookup) Label(code int) (string, error) {
	label, ok := l.byCode[code]
	if !ok {
		return "", eris.Errorf("codes: unknown %s code %d", l.name, code)
	}
	return label, nil
}

// Code returns the code for a configured label. Labels that were empty at
// construction time are not reverse-resolvable.
func (l *Lookup) Code(label string) (int, error) {
	code, ok := l.byLabel[label]
	if !ok {
		return 0, eris.Errorf("codes: unknown %s label %q", l.name, label)
	}
	return code, nil
}

// Has reports whether the code is configured.
func (l *Lookup) Has(code int) bool {
	_, ok := l.byCode[code]
	return ok
}
