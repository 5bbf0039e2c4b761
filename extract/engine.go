// Package extract turns free-form quantum-chemistry output text into
// typed numeric arrays. An Engine makes one sequential pass over a
// file, feeding every line to one window Extractor per requested
// property, then applies each property's formatting rules to the
// collected windows.
package extract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var ErrUnknownProperty = errors.New("property not in table")

// Value is the output of a single formatting rule: a numeric tensor
// for float converters, or a text column for string converters.
type Value struct {
	Tensor *Tensor
	Text   []string
}

// Output is the formatted result for one property. Entries configured
// with one rule fill Single; entries with several rules fill Multi, one
// element per rule in rule order. A nil value means the rule produced
// nothing, which is a normal outcome for a section the file lacks.
type Output struct {
	Single *Value
	Multi  []*Value
}

// Missing reports whether no rule produced data.
func (o Output) Missing() bool {
	if o.Multi == nil {
		return o.Single == nil
	}
	for _, v := range o.Multi {
		if v != nil {
			return false
		}
	}
	return true
}

// Engine owns one Extractor per requested property and drives a single
// pass over a file. Extractor state is mutated in place during a scan,
// so one engine must not scan two files concurrently; independent files
// want independent engines.
type Engine struct {
	entries map[string]Entry
	keys    []string
	windows map[string]*Extractor
}

// NewEngine builds an engine for the given properties of one dialect
// table. With no keys, every property in the table is extracted.
func NewEngine(table Table, keys ...string) (*Engine, error) {
	if len(keys) == 0 {
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	e := &Engine{
		entries: make(map[string]Entry, len(keys)),
		keys:    keys,
		windows: make(map[string]*Extractor, len(keys)),
	}
	for _, k := range keys {
		ent, ok := table[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, k)
		}
		e.entries[k] = ent
		e.windows[k] = NewExtractor(ent.Start, ent.Stop...)
	}
	return e, nil
}

// Keys returns the property keys this engine extracts.
func (e *Engine) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Scan resets every extractor, feeds each input line to all of them in
// order, and formats the collected windows. Formatting failures are
// joined into the returned error; the other properties still format.
func (e *Engine) Scan(r io.Reader) (map[string]Output, error) {
	for _, w := range e.windows {
		w.Reset()
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		for _, k := range e.keys {
			e.windows[k].Feed(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]Output, len(e.keys))
	var errs []error
	for _, k := range e.keys {
		lines := e.windows[k].Lines()
		rules := e.entries[k].Rules
		if len(rules) == 1 {
			v, err := rules[0].Format(lines)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				continue
			}
			out[k] = Output{Single: v}
			continue
		}
		vals := make([]*Value, len(rules))
		ok := true
		for i, rule := range rules {
			v, err := rule.Format(lines)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				ok = false
				break
			}
			vals[i] = v
		}
		if ok {
			out[k] = Output{Multi: vals}
		}
	}
	return out, errors.Join(errs...)
}

// ScanFile scans the named file.
func (e *Engine) ScanFile(path string) (map[string]Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return e.Scan(f)
}
