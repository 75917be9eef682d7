package agata

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	reportTitle = color.New(color.FgCyan, color.Bold).SprintFunc()
	reportUnit  = color.New(color.FgGreen).SprintFunc()
	reportKey   = color.New(color.FgHiBlack).SprintFunc()
	reportEmpty = color.New(color.FgYellow).SprintFunc()
)

// WriteText renders the report as an indented tree. Colors follow the
// fatih/color global settings.
func (r *Report) WriteText(w io.Writer) error {
	tw := &treeWriter{w: w}

	tw.title("services")

	for _, name := range sortedKeys(r.Services) {
		s := r.Services[name]
		tw.unit(name)
		tw.field("singletons", s.Singletons)
		tw.field("actions", s.Actions)
		tw.field("localActions", s.LocalActions)
		tw.field("plugins", s.Plugins)
	}

	tw.title("singletons")

	for _, name := range sortedKeys(r.Singletons) {
		s := r.Singletons[name]
		tw.unit(name)
		tw.field("requires singletons", s.Dependencies.Singletons)
		tw.field("used by services", s.Dependents.Services)
		tw.field("used by actions", s.Dependents.Actions)
		tw.field("used by singletons", s.Dependents.Singletons)
		tw.field("used by plugins", s.Dependents.Plugins)
	}

	tw.title("actions")

	for _, name := range sortedKeys(r.Actions) {
		a := r.Actions[name]
		tw.unit(name)
		tw.field("requires singletons", a.Dependencies.Singletons)
		tw.field("requires actions", a.Dependencies.Actions)
		tw.field("requires plugins", sortedKeys(a.Dependencies.Plugins))
		tw.field("used by services", a.Dependents.Services)
		tw.field("used by actions", a.Dependents.Actions)
	}

	tw.title("plugins")

	for _, name := range sortedKeys(r.Plugins) {
		p := r.Plugins[name]
		tw.unit(name)
		tw.field("requires singletons", p.Dependencies.Singletons)
		tw.field("used by actions", p.Dependents.Actions)
	}

	return tw.err
}

// treeWriter keeps the first write error and skips later writes.
type treeWriter struct {
	w   io.Writer
	err error
}

func (t *treeWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}

	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *treeWriter) title(s string) {
	t.printf("%s\n", reportTitle(s))
}

func (t *treeWriter) unit(name string) {
	t.printf("  %s\n", reportUnit(name))
}

func (t *treeWriter) field(key string, values []string) {
	value := reportEmpty("-")
	if len(values) > 0 {
		value = strings.Join(values, ", ")
	}

	t.printf("    %s: %s\n", reportKey(key), value)
}
