// Package workers provides the built-in worker roster. Each worker is a
// deterministic heuristic analyst for one domain; they share the FuncWorker
// plumbing from the registry package so custom rosters can be loaded from
// YAML alongside them.
package workers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mwhitfield/loom/internal/registry"
	"github.com/mwhitfield/loom/pkg/models"
)

// builtins is the default roster. The generalist doubles as the coordinator's
// fallback and hierarchical lead.
var builtins = []registry.Definition{
	{Name: "generalist", Role: "general code reviewer", Specialization: "cross-cutting review", Capabilities: []string{models.CapCode}},
	{Name: "architect", Role: "architecture reviewer", Specialization: "module boundaries and coupling", Capabilities: []string{models.CapArchitecture, models.CapCode}},
	{Name: "frontender", Role: "frontend specialist", Specialization: "components and rendering", Capabilities: []string{models.CapFrontend, models.CapCode}},
	{Name: "backender", Role: "backend specialist", Specialization: "APIs and data access", Capabilities: []string{models.CapBackend, models.CapCode}},
	{Name: "auditor", Role: "security reviewer", Specialization: "input handling and auth", Capabilities: []string{models.CapSecurity, models.CapCode}},
	{Name: "profiler", Role: "performance analyst", Specialization: "hot paths and allocation", Capabilities: []string{models.CapPerformance, models.CapCode}},
}

// checklist maps each worker to the concerns it walks through for a request.
var checklist = map[string][]string{
	"generalist": {
		"naming and readability of the touched code",
		"error handling on every failure path",
		"test coverage for the changed behavior",
	},
	"architect": {
		"dependency direction between the affected modules",
		"whether the change belongs behind an interface",
		"blast radius of the public API surface",
	},
	"frontender": {
		"render cost of the affected components",
		"state ownership and prop drilling",
		"accessibility of interactive elements",
	},
	"backender": {
		"query shape and index usage",
		"transaction boundaries around multi-step writes",
		"idempotency of the exposed endpoints",
	},
	"auditor": {
		"sanitization of user-controlled input",
		"authorization checks on every entry point",
		"secrets kept out of logs and error messages",
	},
	"profiler": {
		"allocation pressure in the hot path",
		"lock contention under concurrent load",
		"payload sizes crossing process boundaries",
	},
}

// Register installs the built-in roster into reg.
func Register(reg *registry.Registry) error {
	return reg.RegisterDefinitions(builtins, func(def registry.Definition) registry.ProcessFunc {
		return analyst(def)
	})
}

// Bindings returns a lookup usable with RegisterDefinitions so YAML-defined
// rosters can reuse the built-in analysts by name.
func Bindings() func(def registry.Definition) registry.ProcessFunc {
	names := make(map[string]bool, len(builtins))
	for _, def := range builtins {
		names[def.Name] = true
	}
	return func(def registry.Definition) registry.ProcessFunc {
		if !names[def.Name] {
			return nil
		}
		return analyst(def)
	}
}

// analyst builds the ProcessFunc for one definition.
func analyst(def registry.Definition) registry.ProcessFunc {
	concerns := checklist[def.Name]
	return func(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s assessment (%s):\n", def.Role, def.Specialization)
		fmt.Fprintf(&b, "Request: %s\n\n", strings.TrimSpace(request))

		if file, ok := reqCtx["active_file"].(string); ok && file != "" {
			fmt.Fprintf(&b, "Focused on %s.\n", file)
		}
		if guidance, ok := reqCtx["lead_guidance"].(string); ok && guidance != "" {
			fmt.Fprintf(&b, "Following the lead's direction: %s\n", guidance)
		}
		if peers, ok := reqCtx["peer_digests"].(map[string]string); ok && len(peers) > 0 {
			names := make([]string, 0, len(peers))
			for name := range peers {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(&b, "Reconciled with input from %s.\n", strings.Join(names, ", "))
		}

		b.WriteString("\nChecked:\n")
		for _, concern := range concerns {
			fmt.Fprintf(&b, "- %s\n", concern)
		}

		suggestions := make([]string, 0, len(concerns))
		for _, concern := range concerns {
			suggestions = append(suggestions, "Verify "+concern)
		}

		confidence := 0.6
		if _, refining := reqCtx["refinement_round"]; refining {
			// A second look with peer input is worth more.
			confidence = 0.7
		}

		return &models.WorkerResult{
			Content:       b.String(),
			Confidence:    confidence,
			Suggestions:   suggestions,
			RelatedTopics: def.Capabilities,
		}, nil
	}
}
