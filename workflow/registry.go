// Package workflow provides an explicit name-to-handler registry for
// workflows and activities, wired to task queues through a declarative YAML
// configuration. Registration happens at construction time and the whole
// wiring is validated before any worker starts: a workflow referencing an
// unregistered activity is a startup error, not a runtime surprise.
package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Errors returned by registry operations.
var (
	// ErrAlreadyRegistered means the name is taken.
	ErrAlreadyRegistered = fmt.Errorf("name already registered")

	// ErrNotFound means no handler is registered under the name.
	ErrNotFound = fmt.Errorf("not registered")
)

// WorkflowFunc is a workflow entry point.
type WorkflowFunc func(ctx context.Context, input []byte) ([]byte, error)

// ActivityFunc is a single activity implementation.
type ActivityFunc func(ctx context.Context, input []byte) ([]byte, error)

// Workflow is a registered workflow together with the activity names it
// declares.
type Workflow struct {
	Name       string
	Activities []string
	Handler    WorkflowFunc
}

// Registry maps workflow and activity names to their handlers. It replaces
// registration-by-side-effect with an explicit value owned by whoever wires
// workers. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	workflows  map[string]*Workflow
	activities map[string]ActivityFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		workflows:  make(map[string]*Workflow),
		activities: make(map[string]ActivityFunc),
	}
}

// RegisterWorkflow adds a workflow under name, declaring the activities it
// uses. Duplicate names are rejected.
func (r *Registry) RegisterWorkflow(name string, activities []string, handler WorkflowFunc) error {
	if name == "" {
		return fmt.Errorf("workflow name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[name]; exists {
		return fmt.Errorf("workflow %q: %w", name, ErrAlreadyRegistered)
	}
	r.workflows[name] = &Workflow{
		Name:       name,
		Activities: append([]string(nil), activities...),
		Handler:    handler,
	}
	return nil
}

// RegisterActivity adds an activity under name. Duplicate names are
// rejected.
func (r *Registry) RegisterActivity(name string, handler ActivityFunc) error {
	if name == "" {
		return fmt.Errorf("activity name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[name]; exists {
		return fmt.Errorf("activity %q: %w", name, ErrAlreadyRegistered)
	}
	r.activities[name] = handler
	return nil
}

// ResolveWorkflow returns the workflow registered under name.
func (r *Registry) ResolveWorkflow(name string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", name, ErrNotFound)
	}
	return wf, nil
}

// ResolveActivity returns the activity registered under name.
func (r *Registry) ResolveActivity(name string) (ActivityFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.activities[name]
	if !ok {
		return nil, fmt.Errorf("activity %q: %w", name, ErrNotFound)
	}
	return handler, nil
}
