// Package refdata holds the bus stop and bus route reference directory
// backed by two pipe-delimited flat files.
package refdata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sgbus_bot/internal/model"
)

// File names inside the data directory.
const (
	StopsFile  = "bus_stops.txt"
	RoutesFile = "bus_routes.txt"

	sep = " | "
)

// Directory answers stop and route lookups. It is safe for concurrent use
// and can be reloaded in place after a refresh.
type Directory struct {
	dir string

	mu       sync.RWMutex
	stops    map[string]model.BusStop
	order    []string
	routes   map[string][]model.Route
	services map[string]struct{}
}

// Load reads the directory files from dir. Missing files yield an empty directory.
func Load(dir string) (*Directory, error) {
	d := &Directory{dir: dir}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads both files from disk and swaps them in.
func (d *Directory) Reload() error {
	stops, order, err := readStops(filepath.Join(d.dir, StopsFile))
	if err != nil {
		return err
	}
	routes, err := readRoutes(filepath.Join(d.dir, RoutesFile))
	if err != nil {
		return err
	}

	byService := make(map[string][]model.Route)
	services := make(map[string]struct{})
	for _, r := range routes {
		key := strings.ToUpper(r.ServiceNo)
		byService[key] = append(byService[key], r)
		services[key] = struct{}{}
	}

	d.mu.Lock()
	d.stops, d.order = stops, order
	d.routes, d.services = byService, services
	d.mu.Unlock()
	return nil
}

// Len returns the number of known stops.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stops)
}

// Stop returns the stop with the given 5-digit code.
func (d *Directory) Stop(code string) (model.BusStop, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.stops[code]
	return s, ok
}

// Search returns up to limit stops whose road name or description contains query.
func (d *Directory) Search(query string, limit int) []model.BusStop {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var hits []model.BusStop
	for _, code := range d.order {
		if limit > 0 && len(hits) >= limit {
			break
		}
		s := d.stops[code]
		if strings.Contains(strings.ToLower(s.RoadName), q) ||
			strings.Contains(strings.ToLower(s.Description), q) {
			hits = append(hits, s)
		}
	}
	return hits
}

// HasService reports whether the service number appears in any route.
func (d *Directory) HasService(serviceNo string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.services[strings.ToUpper(serviceNo)]
	return ok
}

// Route returns the route entry of a service at a stop.
func (d *Directory) Route(serviceNo, stopCode string) (model.Route, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.routes[strings.ToUpper(serviceNo)] {
		if r.StopCode == stopCode {
			return r, true
		}
	}
	return model.Route{}, false
}

// RouteStops returns the stops of a service grouped by direction, in file order.
func (d *Directory) RouteStops(serviceNo string) map[int][]model.Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rs := d.routes[strings.ToUpper(serviceNo)]
	if len(rs) == 0 {
		return nil
	}
	out := make(map[int][]model.Route)
	for _, r := range rs {
		out[r.Direction] = append(out[r.Direction], r)
	}
	return out
}

// Directions returns the sorted direction keys of a RouteStops result.
func Directions(m map[int][]model.Route) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func readStops(path string) (map[string]model.BusStop, []string, error) {
	stops := make(map[string]model.BusStop)
	var order []string
	err := eachLine(path, 5, func(f []string) error {
		lat, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return fmt.Errorf("latitude %q: %w", f[3], err)
		}
		lng, err := strconv.ParseFloat(f[4], 64)
		if err != nil {
			return fmt.Errorf("longitude %q: %w", f[4], err)
		}
		if _, dup := stops[f[0]]; !dup {
			order = append(order, f[0])
		}
		stops[f[0]] = model.BusStop{
			Code:        f[0],
			RoadName:    f[1],
			Description: f[2],
			Latitude:    lat,
			Longitude:   lng,
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", StopsFile, err)
	}
	return stops, order, nil
}

func readRoutes(path string) ([]model.Route, error) {
	var routes []model.Route
	err := eachLine(path, 10, func(f []string) error {
		dir, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("direction %q: %w", f[1], err)
		}
		routes = append(routes, model.Route{
			ServiceNo:     f[0],
			Direction:     dir,
			StopCode:      f[2],
			StopName:      f[3],
			WeekdayFirst:  f[4],
			WeekdayLast:   f[5],
			SaturdayFirst: f[6],
			SaturdayLast:  f[7],
			SundayFirst:   f[8],
			SundayLast:    f[9],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RoutesFile, err)
	}
	return routes, nil
}

func eachLine(path string, fields int, fn func([]string) error) error {
	f, err := os.Open(path) //nolint:gosec // path is built from the configured data dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()
	return parseLines(f, fields, fn)
}

func parseLines(r io.Reader, fields int, fn func([]string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, sep)
		if len(parts) != fields {
			return fmt.Errorf("line %d: want %d fields, got %d", n, fields, len(parts))
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := fn(parts); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}
