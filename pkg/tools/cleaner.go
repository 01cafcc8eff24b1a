package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for unknown conversion formats
var ErrUnsupportedFormat = errors.New("unsupported format")

// Cleaner normalises a design document, e.g. moving it into a namespace
// and filling in missing identities
type Cleaner interface {
	Clean(ctx context.Context, document, namespace string) (string, error)
}

// Converter translates a document between serialization formats
type Converter interface {
	Convert(ctx context.Context, content, from, to string) (string, error)
}

// CommandCleaner runs the configured cleanup command
type CommandCleaner struct {
	runner           *Runner
	template         string
	defaultNamespace string
}

// NewCommandCleaner creates a cleaner. The template may use {input},
// {output} and {namespace}.
func NewCommandCleaner(runner *Runner, template, defaultNamespace string) *CommandCleaner {
	return &CommandCleaner{runner: runner, template: template, defaultNamespace: defaultNamespace}
}

// Clean implements Cleaner
func (c *CommandCleaner) Clean(ctx context.Context, document, namespace string) (string, error) {
	if namespace == "" {
		namespace = c.defaultNamespace
	}
	return c.runner.Run(ctx, "clean", c.template, document, map[string]string{"namespace": namespace})
}

// CommandConverter runs the configured conversion command
type CommandConverter struct {
	runner   *Runner
	template string
}

// NewCommandConverter creates a converter. The template may use
// {input}, {output}, {from} and {to}.
func NewCommandConverter(runner *Runner, template string) *CommandConverter {
	return &CommandConverter{runner: runner, template: template}
}

// Convert implements Converter
func (c *CommandConverter) Convert(ctx context.Context, content, from, to string) (string, error) {
	to = strings.ToLower(strings.TrimSpace(to))
	if !validFormat(to) {
		return "", fmt.Errorf("%w: target %q", ErrUnsupportedFormat, to)
	}
	from = strings.ToLower(strings.TrimSpace(from))
	if from != "" && !validFormat(from) {
		return "", fmt.Errorf("%w: source %q", ErrUnsupportedFormat, from)
	}
	return c.runner.Run(ctx, "convert", c.template, content, map[string]string{"from": from, "to": to})
}

var formats = map[string]bool{
	"sbol2":   true,
	"sbol3":   true,
	"genbank": true,
	"fasta":   true,
	"gff3":    true,
}

// validFormat keeps user input out of the command line unless it is a
// known format name
func validFormat(f string) bool {
	return formats[f]
}

// Formats lists the accepted conversion format names
func Formats() []string {
	return []string{"sbol2", "sbol3", "genbank", "fasta", "gff3"}
}
