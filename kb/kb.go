// Package kb holds the in-memory catalog of pipeline cases and the search
// reports produced for them.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/production-optimizer/core"
	"github.com/signalsfoundry/production-optimizer/model"
)

var (
	ErrPipelineExists   = errors.New("pipeline already exists")
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventPipelineAdded EventType = iota
	EventReportPublished
)

func (t EventType) String() string {
	switch t {
	case EventPipelineAdded:
		return "pipeline_added"
	case EventReportPublished:
		return "report_published"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Pipeline string
	// Best is set for EventReportPublished.
	Best core.Evaluation
}

// Catalog is a thread-safe store of named pipelines and their latest
// optimization reports.
type Catalog struct {
	mu sync.RWMutex

	pipelines map[string]model.Pipeline
	reports   map[string]*core.OptimizationReport

	nextSub int
	subs    map[int]func(Event)
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		pipelines: make(map[string]model.Pipeline),
		reports:   make(map[string]*core.OptimizationReport),
		subs:      make(map[int]func(Event)),
	}
}

// AddPipeline validates p and stores a copy under p.Name.
func (c *Catalog) AddPipeline(p model.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if _, exists := c.pipelines[p.Name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPipelineExists, p.Name)
	}
	c.pipelines[p.Name] = p.Clone()
	subs := c.snapshotSubs()
	c.mu.Unlock()

	notify(subs, Event{Type: EventPipelineAdded, Pipeline: p.Name})
	return nil
}

// AddScenario stores every case of sc. It stops at the first failure.
func (c *Catalog) AddScenario(sc *core.Scenario) error {
	for _, p := range sc.Cases {
		if err := c.AddPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

// GetPipeline returns a copy of the named pipeline.
func (c *Catalog) GetPipeline(name string) (model.Pipeline, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pipelines[name]
	if !ok {
		return model.Pipeline{}, fmt.Errorf("%w: %q", ErrPipelineNotFound, name)
	}
	return p.Clone(), nil
}

// ListPipelines returns the stored pipeline names in sorted order.
func (c *Catalog) ListPipelines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.pipelines))
	for name := range c.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublishReport records rep as the latest report for its pipeline and
// notifies subscribers. The pipeline must already be in the catalog.
func (c *Catalog) PublishReport(rep *core.OptimizationReport) error {
	if rep == nil || len(rep.Results) == 0 {
		return fmt.Errorf("publish report: empty report")
	}
	c.mu.Lock()
	if _, ok := c.pipelines[rep.Pipeline]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPipelineNotFound, rep.Pipeline)
	}
	c.reports[rep.Pipeline] = rep
	subs := c.snapshotSubs()
	c.mu.Unlock()

	notify(subs, Event{Type: EventReportPublished, Pipeline: rep.Pipeline, Best: rep.Best()})
	return nil
}

// Report returns the latest report published for name.
func (c *Catalog) Report(name string) (*core.OptimizationReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rep, ok := c.reports[name]
	return rep, ok
}

// Leaderboard returns the best evaluation of every reported pipeline, most
// profitable first. Equal profits keep name order.
func (c *Catalog) Leaderboard() []Standing {
	c.mu.RLock()
	out := make([]Standing, 0, len(c.reports))
	for name, rep := range c.reports {
		out = append(out, Standing{Pipeline: name, Best: rep.Best()})
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Pipeline < out[j].Pipeline })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Best.Result.Profit > out[j].Best.Result.Profit
	})
	return out
}

// Standing is one row of Leaderboard.
type Standing struct {
	Pipeline string
	Best     core.Evaluation
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function. Callbacks run on the mutating goroutine, outside the
// catalog lock.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// snapshotSubs must be called with c.mu held.
func (c *Catalog) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), len(ids))
	for i, id := range ids {
		subs[i] = c.subs[id]
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
