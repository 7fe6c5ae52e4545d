package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of events produced by one store save.
const watchDebounce = 100 * time.Millisecond

// newProfileWatchCmd creates the profile watch command.
func (cli *CLI) newProfileWatchCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "List profiles and refresh on every change",
		Long: `Print the profile list and print it again whenever the profile store
changes, for example when another terminal launches or closes a session.

Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg, err := cli.openRegistry(ctx)
			if err != nil {
				return err
			}
			if err := cli.renderProfiles(reg.List(), search); err != nil {
				return err
			}

			log := cli.logger()
			path := cli.Config.StorePath(cli.Paths)
			return watchFile(ctx, path, watchDebounce, func() {
				if err := reg.Reload(ctx); err != nil {
					log.WithError(err).Warn("Failed to reload profiles")
					return
				}
				if !cli.output().IsJSON() {
					fmt.Fprintln(cli.out)
				}
				if err := cli.renderProfiles(reg.List(), search); err != nil {
					log.WithError(err).Warn("Failed to print profiles")
				}
			}, log)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show profiles whose name, proxy host or port matches")

	return cmd
}

// watchFile calls onChange after path changes, once per burst of events,
// until ctx is done. The parent directory is watched so atomic renames and
// SQLite journal files are noticed.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func(), log logrus.FieldLogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.WithField("path", path).Debug("Watching profile store")

	base := filepath.Base(path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !strings.HasPrefix(name, base) || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".lock") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Profile store watcher error")
		}
	}
}
