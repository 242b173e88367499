package module

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ErrParse is returned for any malformed container: code that does not
// evaluate, a forbidden import, or an empty container. A failed parse
// creates no partial state.
var ErrParse = errors.New("malformed module container")

// defaultAllowedImports is the stdlib whitelist applied to container code.
// Packages with filesystem, network, or process access are deliberately
// absent.
var defaultAllowedImports = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"math/rand":       true,
	"path":            true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
}

// Option configures a Parse call.
type Option func(*parser)

// WithOrigin records where the container bytes came from (a file path, a
// URL, a registry key). Purely descriptive.
func WithOrigin(origin string) Option {
	return func(p *parser) { p.origin = origin }
}

// WithAllowedImports replaces the default import whitelist.
func WithAllowedImports(pkgs []string) Option {
	return func(p *parser) {
		p.allowed = make(map[string]bool, len(pkgs))
		for _, pkg := range pkgs {
			p.allowed[pkg] = true
		}
	}
}

type parser struct {
	origin  string
	allowed map[string]bool
}

type section struct {
	name string
	src  string
}

// Parse evaluates a container and returns an immutable Unit holding one
// symbol entry per section. Parsing is transactional: any failure returns
// ErrParse and no unit.
func Parse(data []byte, opts ...Option) (*Unit, error) {
	p := &parser{origin: "inline", allowed: defaultAllowedImports}
	for _, opt := range opts {
		opt(p)
	}

	sections, err := splitSections(data)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	entries := make([]*Entry, 0, len(sections))
	for _, sec := range sections {
		entry, err := p.parseSection(id, sec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return &Unit{
		ID:       id,
		Origin:   p.origin,
		Entries:  entries,
		LoadedAt: time.Now(),
	}, nil
}

// parseSection evaluates one section into its own interpreter and snapshots
// the set of names it declares. Values are materialized lazily on first
// lookup.
func (p *parser) parseSection(moduleID string, sec section) (*Entry, error) {
	if err := p.validateImports(sec); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: section %q: loading stdlib: %v", ErrParse, sec.name, err)
	}
	if _, err := i.Eval(wrapCode(sec.src)); err != nil {
		return nil, fmt.Errorf("%w: section %q: %v", ErrParse, sec.name, err)
	}

	names := make(map[string]bool)
	for name := range i.Symbols("main")["main"] {
		names[name] = true
	}

	return &Entry{
		owner:   moduleID,
		section: sec.name,
		interp:  i,
		names:   names,
	}, nil
}

// validateImports rejects sections importing anything outside the whitelist.
func (p *parser) validateImports(sec section) error {
	var inBlock bool
	for _, line := range strings.Split(sec.src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
			continue
		}

		var pkg string
		if inBlock && trimmed != "" {
			pkg = strings.Trim(trimmed, `"`)
		} else if strings.HasPrefix(trimmed, "import ") {
			pkg = strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
		} else {
			continue
		}
		// Aliased imports keep the quoted path as the last field.
		if fields := strings.Fields(pkg); len(fields) > 1 {
			pkg = strings.Trim(fields[len(fields)-1], `"`)
		}
		if pkg != "" && !p.allowed[pkg] {
			return fmt.Errorf("%w: section %q: forbidden import %q", ErrParse, sec.name, pkg)
		}
	}
	return nil
}

// wrapCode ensures the section evaluates as package main.
func wrapCode(src string) string {
	if strings.Contains(src, "package main") {
		return src
	}
	return "package main\n\n" + src
}

// splitSections cuts a container on "-- name --" separator lines. A
// container without separators is a single unnamed section.
func splitSections(data []byte) ([]section, error) {
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty container", ErrParse)
	}

	var (
		sections []section
		current  = section{name: "body"}
		started  bool
	)
	flush := func() error {
		if !started {
			return nil
		}
		if strings.TrimSpace(current.src) == "" {
			return fmt.Errorf("%w: section %q is empty", ErrParse, current.name)
		}
		sections = append(sections, current)
		return nil
	}

	for _, line := range strings.Split(text, "\n") {
		if name, ok := sectionSeparator(line); ok {
			if err := flush(); err != nil {
				return nil, err
			}
			current = section{name: name}
			started = true
			continue
		}
		if !started && strings.TrimSpace(line) != "" {
			started = true
		}
		current.src += line + "\n"
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrParse)
	}
	return sections, nil
}

func sectionSeparator(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "-- ") || !strings.HasSuffix(trimmed, " --") {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, "-- "), " --"))
	if name == "" {
		return "", false
	}
	return name, true
}
