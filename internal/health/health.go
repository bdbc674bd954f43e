// Package health reports whether an input method process can serve
// lookups: its primary table loads, its user store answers and its table
// directory exists.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"threecorner/internal/cin"
)

// Status is the health of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

const defaultTimeout = 5 * time.Second

// Result is the outcome of one check.
type Result struct {
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ns"`
}

// Check inspects one component.
type Check func(ctx context.Context) Result

type component struct {
	critical bool
	check    Check
	timeout  time.Duration
}

// Checker runs the registered checks and keeps their last results.
type Checker struct {
	mu         sync.Mutex
	components map[string]component
	results    map[string]Result
	started    time.Time
}

// NewChecker returns an empty checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]component),
		results:    make(map[string]Result),
		started:    time.Now(),
	}
}

// Register adds a check. A failing critical check makes the process
// unhealthy; any other failure only degrades it.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{critical: critical, check: check, timeout: defaultTimeout}
	c.results[name] = Result{Status: StatusUnknown}
}

// Run executes every check concurrently and returns the results by name.
func (c *Checker) Run(ctx context.Context) map[string]Result {
	c.mu.Lock()
	comps := make(map[string]component, len(c.components))
	for name, comp := range c.components {
		comps[name] = comp
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	results := make(map[string]Result, len(comps))
	var resMu sync.Mutex
	for name, comp := range comps {
		name, comp := name, comp
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := run(ctx, comp)
			resMu.Lock()
			results[name] = r
			resMu.Unlock()
		}()
	}
	wg.Wait()

	c.mu.Lock()
	for name, r := range results {
		c.results[name] = r
	}
	c.mu.Unlock()
	return results
}

func run(ctx context.Context, comp component) (r Result) {
	ctx, cancel := context.WithTimeout(ctx, comp.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r = Result{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(p)}
		}
		r.LastChecked = start
		r.Duration = time.Since(start)
	}()
	return comp.check(ctx)
}

// Status aggregates the last results.
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := StatusHealthy
	for name, r := range c.results {
		critical := c.components[name].critical
		switch r.Status {
		case StatusUnhealthy:
			if critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		case StatusDegraded:
			status = StatusDegraded
		case StatusUnknown:
			if critical && status == StatusHealthy {
				status = StatusUnknown
			}
		}
	}
	return status
}

// Report is the JSON body of the health endpoint.
type Report struct {
	Status     Status            `json:"status"`
	Uptime     string            `json:"uptime"`
	Components map[string]Result `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Report runs the checks and summarizes them.
func (c *Checker) Report(ctx context.Context) Report {
	results := c.Run(ctx)
	return Report{
		Status:     c.Status(),
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Components: results,
		Timestamp:  time.Now(),
	}
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler serves the report; unhealthy processes answer 503.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
}

// TableLoader is the part of *cin.Registry the table check uses.
type TableLoader interface {
	Await(ctx context.Context, kind cin.Kind, scheme string) (*cin.Table, error)
}

// TableCheck loads the table scheme() names for kind.
func TableCheck(tables TableLoader, kind cin.Kind, scheme func() string) Check {
	return func(ctx context.Context) Result {
		name := scheme()
		t, err := tables.Await(ctx, kind, name)
		if err != nil {
			return Result{Status: StatusUnhealthy, Message: kind.String() + " table " + name, Error: err.Error()}
		}
		return Result{Status: StatusHealthy, Message: fmt.Sprintf("%s table %s: %d codes", kind, name, t.Len())}
	}
}

// PingCheck reports a failing ping as unhealthy.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusUnhealthy, Message: "database unreachable", Error: err.Error()}
		}
		return Result{Status: StatusHealthy, Message: "database ok"}
	}
}

// DirCheck requires dir() to be an existing directory.
func DirCheck(dir func() string) Check {
	return func(ctx context.Context) Result {
		path := dir()
		info, err := os.Stat(path)
		switch {
		case err != nil:
			return Result{Status: StatusUnhealthy, Message: path, Error: err.Error()}
		case !info.IsDir():
			return Result{Status: StatusUnhealthy, Message: path, Error: "not a directory"}
		}
		return Result{Status: StatusHealthy, Message: path}
	}
}
