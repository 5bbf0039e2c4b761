package extract

import "strings"

// Extractor collects the window of lines belonging to one property. It
// watches for its start marker, buffers every following line, and closes
// the window when any stop marker appears. Both marker lines stay
// outside the buffer. A nil stop set marks a single-line property whose
// window is the start line itself.
type Extractor struct {
	start string
	stop  []string

	collecting bool
	lines      []string // nil until a start marker has been seen
}

func NewExtractor(start string, stop ...string) *Extractor {
	return &Extractor{start: start, stop: stop}
}

// Reset returns the extractor to its initial state before a new file.
func (e *Extractor) Reset() {
	e.collecting = false
	e.lines = nil
}

// Feed consumes one line of output. Blank lines and dash separators are
// transparent: they never open, close, or enter a window. A repeated
// start marker discards the partial window and begins a new one.
func (e *Extractor) Feed(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "" || strings.HasPrefix(line, "----"):
	case strings.HasPrefix(line, e.start):
		e.lines = []string{}
		e.collecting = true
		if e.stop == nil {
			e.lines = append(e.lines, line)
			e.collecting = false
		}
	case e.collecting:
		for _, stop := range e.stop {
			if strings.HasPrefix(line, stop) {
				e.collecting = false
				return
			}
		}
		e.lines = append(e.lines, line)
	}
}

// Lines returns the collected window, stripped of surrounding
// whitespace line by line. It is nil if the start marker never
// appeared and non-nil (possibly empty) otherwise.
func (e *Extractor) Lines() []string {
	return e.lines
}
