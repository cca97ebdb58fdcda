package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order and indexes them by name.
type Registry struct {
	order  []Job
	byName map[string]Job
}

// NewRegistry registers every non-nil job. Two jobs sharing a name is a
// wiring mistake and fails construction.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron: nil job")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron: job name required")
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.order...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, job := range r.order {
		names[i] = job.Name()
	}
	return names
}

// Select resolves job names in the order given. No names selects every job.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	selected := make([]Job, 0, len(names))
	for _, name := range names {
		job, ok := r.byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("cron: unknown job %q (known: %s)", name, strings.Join(r.Names(), ", "))
		}
		selected = append(selected, job)
	}
	return selected, nil
}
