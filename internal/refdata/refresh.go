package refdata

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sgbus_bot/internal/datamall"
)

// Source provides the raw reference datasets.
type Source interface {
	BusStops(ctx context.Context) ([]datamall.BusStop, error)
	BusRoutes(ctx context.Context) ([]datamall.BusRoute, error)
}

// Refresher rebuilds the flat files from a Source and reloads the directory.
type Refresher struct {
	src Source
	dir *Directory
	log *slog.Logger
}

// NewRefresher creates a Refresher writing into the directory's data dir.
func NewRefresher(src Source, dir *Directory, log *slog.Logger) *Refresher {
	return &Refresher{src: src, dir: dir, log: log}
}

// Refresh downloads both datasets, replaces the files and reloads the
// directory. On any error the previous files are left in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	stops, err := r.src.BusStops(ctx)
	if err != nil {
		return fmt.Errorf("fetch stops: %w", err)
	}
	routes, err := r.src.BusRoutes(ctx)
	if err != nil {
		return fmt.Errorf("fetch routes: %w", err)
	}

	names := make(map[string]string, len(stops))
	for _, s := range stops {
		names[s.BusStopCode] = strings.ToUpper(s.Description)
	}

	if err := os.MkdirAll(r.dir.dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	stopsTmp, err := writeTemp(filepath.Join(r.dir.dir, StopsFile), func(w *bufio.Writer) error {
		for _, s := range stops {
			if _, err := fmt.Fprintln(w, strings.Join([]string{
				s.BusStopCode,
				strings.ToUpper(s.RoadName),
				strings.ToUpper(s.Description),
				strconv.FormatFloat(s.Latitude, 'f', -1, 64),
				strconv.FormatFloat(s.Longitude, 'f', -1, 64),
			}, sep)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", StopsFile, err)
	}
	defer func() { _ = os.Remove(stopsTmp) }()

	skipped := 0
	routesTmp, err := writeTemp(filepath.Join(r.dir.dir, RoutesFile), func(w *bufio.Writer) error {
		for _, rt := range routes {
			name, ok := names[rt.BusStopCode]
			if !ok {
				skipped++
				continue
			}
			if _, err := fmt.Fprintln(w, strings.Join([]string{
				rt.ServiceNo,
				strconv.Itoa(rt.Direction),
				rt.BusStopCode,
				name,
				rt.WDFirstBus, rt.WDLastBus,
				rt.SATFirstBus, rt.SATLastBus,
				rt.SUNFirstBus, rt.SUNLastBus,
			}, sep)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", RoutesFile, err)
	}
	defer func() { _ = os.Remove(routesTmp) }()

	err = commit([]pendingFile{
		{tmp: stopsTmp, path: filepath.Join(r.dir.dir, StopsFile)},
		{tmp: routesTmp, path: filepath.Join(r.dir.dir, RoutesFile)},
	})
	if err != nil {
		return fmt.Errorf("replace reference files: %w", err)
	}

	if err := r.dir.Reload(); err != nil {
		return fmt.Errorf("reload directory: %w", err)
	}
	r.log.Info("reference data refreshed",
		"stops", len(stops), "routes", len(routes)-skipped, "skipped_routes", skipped)
	return nil
}

// writeTemp fills a temp file next to path and returns its name.
func writeTemp(path string, fill func(*bufio.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}

	w := bufio.NewWriter(tmp)
	err = fill(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

const backupSuffix = ".prev"

type pendingFile struct {
	tmp  string
	path string
}

// commit moves every temp file over its target. When a move fails, the
// targets already replaced are restored from their backups.
func commit(files []pendingFile) error {
	var done []pendingFile
	rollback := func() {
		for _, f := range done {
			_ = os.Rename(f.path+backupSuffix, f.path)
		}
	}

	for _, f := range files {
		backup := f.path + backupSuffix
		if err := os.Rename(f.path, backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rollback()
			return err
		}
		if err := os.Rename(f.tmp, f.path); err != nil {
			_ = os.Rename(backup, f.path)
			rollback()
			return err
		}
		done = append(done, f)
	}

	for _, f := range done {
		_ = os.Remove(f.path + backupSuffix)
	}
	return nil
}
