package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mwhitfield/loom/pkg/models"
)

// Definition is the declarative part of a worker: everything except the
// process capability, which is bound in code via Bind.
type Definition struct {
	// Name is the worker's unique identity.
	Name string `yaml:"name"`
	// Role is a short role description.
	Role string `yaml:"role"`
	// Specialization is a longer free-text description of what the
	// worker is best at.
	Specialization string `yaml:"specialization,omitempty"`
	// Capabilities are the domains the worker advertises.
	Capabilities []string `yaml:"capabilities"`
}

// validate checks a definition for registration.
func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("registry: definition missing name")
	}
	if len(d.Capabilities) == 0 {
		return fmt.Errorf("registry: worker %q declares no capabilities", d.Name)
	}
	return nil
}

// ProcessFunc is the process capability bound to a definition.
type ProcessFunc func(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error)

// FuncWorker pairs a Definition with a ProcessFunc to satisfy Worker.
type FuncWorker struct {
	def     Definition
	process ProcessFunc
}

// Bind creates a Worker from a definition and a process function.
func Bind(def Definition, process ProcessFunc) (*FuncWorker, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	if process == nil {
		return nil, fmt.Errorf("registry: worker %q has no process function", def.Name)
	}
	return &FuncWorker{def: def, process: process}, nil
}

// Process implements Worker.
func (w *FuncWorker) Process(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
	return w.process(ctx, request, reqCtx)
}

// Name implements Worker.
func (w *FuncWorker) Name() string { return w.def.Name }

// Role implements Worker.
func (w *FuncWorker) Role() string { return w.def.Role }

// Capabilities implements Worker.
func (w *FuncWorker) Capabilities() []string {
	out := make([]string, len(w.def.Capabilities))
	copy(out, w.def.Capabilities)
	return out
}

// Specialization implements Specializer.
func (w *FuncWorker) Specialization() string { return w.def.Specialization }

// definitionsFile is the YAML shape of a worker definitions file.
type definitionsFile struct {
	Workers []Definition `yaml:"workers"`
}

// LoadDefinitions reads worker definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read worker definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse worker definitions: %w", err)
	}

	for _, def := range file.Workers {
		if err := def.validate(); err != nil {
			return nil, err
		}
	}
	return file.Workers, nil
}

// RegisterDefinitions binds each definition to the process function supplied
// by lookup and registers the result. Definitions the lookup returns nil for
// are skipped: the file may describe workers this build doesn't provide.
func (r *Registry) RegisterDefinitions(defs []Definition, lookup func(Definition) ProcessFunc) error {
	for _, def := range defs {
		process := lookup(def)
		if process == nil {
			continue
		}
		w, err := Bind(def, process)
		if err != nil {
			return err
		}
		if err := r.Register(w); err != nil {
			return err
		}
	}
	return nil
}
