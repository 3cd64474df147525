package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	renderconsole "github.com/bnema/buswork-cli/internal/adapters/render/console"
	"github.com/bnema/buswork-cli/internal/application"
	"github.com/bnema/buswork-cli/internal/domain"
)

var errChannelClosed = errors.New("progress channel closed")

func printEntries(w io.Writer, entries []domain.LogEntry) error {
	for _, entry := range entries {
		if _, err := fmt.Fprintln(w, renderconsole.FormatEntry(entry)); err != nil {
			return err
		}
	}
	return nil
}

// followLog prints log entries as they arrive until ctx is done. It returns
// errChannelClosed once the progress channel stops for good.
func followLog(ctx context.Context, w io.Writer, console *application.Console) error {
	updates, unsubscribe := console.Log.Subscribe()
	defer unsubscribe()
	printed := 0

	flush := func() error {
		entries := console.Log.Snapshot()
		if len(entries) < printed {
			printed = 0
		}
		if err := printEntries(w, entries[printed:]); err != nil {
			return err
		}
		printed = len(entries)
		return nil
	}

	for {
		if err := flush(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return flush()
		case <-updates:
		case <-console.Channel.Done():
			if err := flush(); err != nil {
				return err
			}
			return errChannelClosed
		}
	}
}
