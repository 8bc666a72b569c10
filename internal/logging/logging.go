// Package logging configures the process-wide apex/log handler.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// Init installs the handler for format ("text", "json" or "cli") writing to
// stderr and sets the minimum level.
func Init(level, format string) error {
	return InitWriter(os.Stderr, level, format)
}

func InitWriter(w io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	handler, err := newHandler(w, format)
	if err != nil {
		return err
	}
	log.SetHandler(handler)
	log.SetLevel(lvl)
	return nil
}

func newHandler(w io.Writer, format string) (log.Handler, error) {
	switch format {
	case "", "text":
		return text.New(w), nil
	case "json":
		return json.New(w), nil
	case "cli":
		return cli.New(w), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
