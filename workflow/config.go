package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the declarative worker wiring: which workflows run, on which
// task queues, using which activities.
type Config struct {
	Workflows []WorkflowConfig `yaml:"workflows"`
}

// WorkflowConfig binds one registered workflow to a task queue.
type WorkflowConfig struct {
	Name       string   `yaml:"name"`
	TaskQueue  string   `yaml:"task_queue"`
	Activities []string `yaml:"activities"`
}

// LoadConfig reads a YAML wiring file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read workflow config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse workflow config: %w", err)
	}
	return &cfg, nil
}

// Binding is one fully resolved workflow wiring: the workflow, its task
// queue, and every activity it needs already looked up.
type Binding struct {
	Workflow   *Workflow
	TaskQueue  string
	Activities map[string]ActivityFunc
}

// Bind resolves the configuration against the registry and returns one
// binding per configured workflow. Any dangling reference fails the whole
// wiring so misconfiguration surfaces at startup.
func Bind(cfg *Config, reg *Registry) ([]Binding, error) {
	if len(cfg.Workflows) == 0 {
		return nil, fmt.Errorf("workflow config declares no workflows")
	}

	bindings := make([]Binding, 0, len(cfg.Workflows))
	for _, wc := range cfg.Workflows {
		if wc.TaskQueue == "" {
			return nil, fmt.Errorf("workflow %q: task queue must not be empty", wc.Name)
		}

		wf, err := reg.ResolveWorkflow(wc.Name)
		if err != nil {
			return nil, err
		}

		binding := Binding{
			Workflow:   wf,
			TaskQueue:  wc.TaskQueue,
			Activities: make(map[string]ActivityFunc),
		}

		// Activities declared by the workflow and those listed in the
		// config must both resolve.
		for _, name := range wf.Activities {
			handler, err := reg.ResolveActivity(name)
			if err != nil {
				return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
			}
			binding.Activities[name] = handler
		}
		for _, name := range wc.Activities {
			handler, err := reg.ResolveActivity(name)
			if err != nil {
				return nil, fmt.Errorf("workflow %q: %w", wc.Name, err)
			}
			binding.Activities[name] = handler
		}

		bindings = append(bindings, binding)
	}
	return bindings, nil
}
