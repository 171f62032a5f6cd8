package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mwhitfield/loom/internal/registry"
	"github.com/mwhitfield/loom/pkg/models"
)

// Scorer ranks a worker's fit for a request. Scoring must be deterministic:
// the same request, context, and rules always produce the same score.
// Implementations can be swapped without touching topology execution.
type Scorer interface {
	Score(w registry.Worker, request string, reqCtx map[string]any) float64
}

// DomainRule maps one capability domain to its trigger keywords and weight.
type DomainRule struct {
	// Capability is the domain tag this rule scores.
	Capability string `yaml:"capability"`
	// Weight multiplies each keyword hit. Security and performance hits
	// weigh more than generic code hits.
	Weight float64 `yaml:"weight"`
	// Keywords are matched as substrings of the lowercased request.
	Keywords []string `yaml:"keywords"`
}

// defaultRules is the built-in scoring table.
var defaultRules = []DomainRule{
	{Capability: models.CapSecurity, Weight: 2.0, Keywords: []string{
		"security", "vulnerab", "auth", "encryption", "injection",
		"xss", "csrf", "exploit", "sanitize", "secret",
	}},
	{Capability: models.CapPerformance, Weight: 2.0, Keywords: []string{
		"performance", "slow", "latency", "optimiz", "profil",
		"bottleneck", "throughput", "memory leak", "cache",
	}},
	{Capability: models.CapArchitecture, Weight: 1.5, Keywords: []string{
		"architecture", "design", "structure", "refactor", "module",
		"pattern", "scalab", "coupling", "boundary",
	}},
	{Capability: models.CapFrontend, Weight: 1.0, Keywords: []string{
		"frontend", "ui", "css", "layout", "component", "render",
		"browser", "styling", "accessibility",
	}},
	{Capability: models.CapBackend, Weight: 1.0, Keywords: []string{
		"backend", "api", "database", "server", "endpoint", "query",
		"migration", "schema", "queue",
	}},
	{Capability: models.CapCode, Weight: 0.5, Keywords: []string{
		"code", "bug", "fix", "implement", "function", "test", "review",
	}},
}

// fileSignals nudges domain scores from the active editing context: the
// extension of the file being edited hints at frontend or backend work.
var fileSignals = map[string]string{
	".tsx":  models.CapFrontend,
	".jsx":  models.CapFrontend,
	".css":  models.CapFrontend,
	".scss": models.CapFrontend,
	".html": models.CapFrontend,
	".vue":  models.CapFrontend,
	".go":   models.CapBackend,
	".py":   models.CapBackend,
	".sql":  models.CapBackend,
	".rb":   models.CapBackend,
	".java": models.CapBackend,
}

// contextBonus is added to a domain's score when the active file points at it.
const contextBonus = 1.0

// KeywordScorer scores workers by counting weighted keyword hits per
// capability domain in the lowercased request text, plus contextual bonuses
// from the active editing context. It is a naive classifier by design; swap
// in another Scorer for anything smarter.
type KeywordScorer struct {
	mu    sync.RWMutex
	rules []DomainRule
}

// NewKeywordScorer creates a scorer with the built-in rules table.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{rules: defaultRules}
}

// SetRules replaces the scoring table.
func (s *KeywordScorer) SetRules(rules []DomainRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// Rules returns a copy of the current scoring table.
func (s *KeywordScorer) Rules() []DomainRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DomainRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Score implements Scorer.
func (s *KeywordScorer) Score(w registry.Worker, request string, reqCtx map[string]any) float64 {
	domains := s.domainScores(request, reqCtx)

	var total float64
	for _, domain := range w.Capabilities() {
		total += domains[domain]
	}
	return total
}

// domainScores computes the per-domain score for a request.
func (s *KeywordScorer) domainScores(request string, reqCtx map[string]any) map[string]float64 {
	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()

	lower := strings.ToLower(request)
	scores := make(map[string]float64, len(rules))
	for _, rule := range rules {
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores[rule.Capability] += float64(hits) * rule.Weight
		}
	}

	if activeFile, ok := reqCtx["active_file"].(string); ok && activeFile != "" {
		ext := strings.ToLower(filepath.Ext(activeFile))
		if domain, ok := fileSignals[ext]; ok {
			scores[domain] += contextBonus
		}
	}

	return scores
}

// TopDomain returns the highest-scoring domain for a request, or "general"
// when nothing matches. Used to categorize performance history entries.
func (s *KeywordScorer) TopDomain(request string, reqCtx map[string]any) string {
	domains := s.domainScores(request, reqCtx)

	best, bestScore := "general", 0.0
	// Iterate the rules table, not the map, so ties break deterministically.
	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()
	for _, rule := range rules {
		if sc := domains[rule.Capability]; sc > bestScore {
			best, bestScore = rule.Capability, sc
		}
	}
	return best
}

// rulesFile is the YAML shape of a scoring rules file.
type rulesFile struct {
	Rules []DomainRule `yaml:"rules"`
}

// LoadRulesFile replaces the scoring table with rules read from a YAML file.
func (s *KeywordScorer) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scoring rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse scoring rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return fmt.Errorf("scoring rules file %s defines no rules", path)
	}
	for _, r := range file.Rules {
		if r.Capability == "" || len(r.Keywords) == 0 {
			return fmt.Errorf("scoring rule for %q is incomplete", r.Capability)
		}
	}

	s.SetRules(file.Rules)
	return nil
}

// Selection is the outcome of scoring and ranking workers for one request.
type Selection struct {
	// Workers are the chosen workers, highest score first, capped at
	// maxSelected.
	Workers []registry.Worker
	// Scores maps worker name to its raw score.
	Scores map[string]float64
	// Topology is the coordination pattern chosen for this selection.
	Topology models.Topology
	// Confidence reflects how strong the best match was, capped at 0.9.
	Confidence float64
	// Reasoning explains the selection for synthesis output.
	Reasoning string
	// Fallback is true when no worker scored and the default was used.
	Fallback bool
}

// maxSelected caps how many workers one request fans out to.
const maxSelected = 3

// confidence curves the best raw score into (0, 0.9].
func confidence(maxScore float64) float64 {
	c := 0.3 + 0.15*maxScore
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// fallbackConfidence is used when no worker scored and the default worker
// answers alone.
const fallbackConfidence = 0.25

// selectWorkers scores every registered worker and decides the topology.
// Deterministic: ties resolve by registration order.
func selectWorkers(reg *registry.Registry, scorer Scorer, defaultWorker, request string, reqCtx map[string]any) (Selection, error) {
	all := reg.All()
	if len(all) == 0 {
		return Selection{}, fmt.Errorf("coordinator: no workers registered")
	}

	scores := make(map[string]float64, len(all))
	var scored []registry.Worker
	for _, w := range all {
		sc := scorer.Score(w, request, reqCtx)
		if sc <= 0 {
			continue
		}
		scores[w.Name()] = sc
		scored = append(scored, w)
	}

	if len(scored) == 0 {
		def, ok := reg.Get(defaultWorker)
		if !ok {
			return Selection{}, fmt.Errorf("coordinator: no worker scored and default %q is not registered", defaultWorker)
		}
		return Selection{
			Workers:    []registry.Worker{def},
			Scores:     scores,
			Topology:   models.TopologySequential,
			Confidence: fallbackConfidence,
			Reasoning:  fmt.Sprintf("no capability matched; falling back to %s", defaultWorker),
			Fallback:   true,
		}, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scores[scored[i].Name()] > scores[scored[j].Name()]
	})
	if len(scored) > maxSelected {
		scored = scored[:maxSelected]
	}

	sel := Selection{
		Workers:    scored,
		Scores:     scores,
		Confidence: confidence(scores[scored[0].Name()]),
	}

	hasLead := false
	for _, w := range scored {
		if w.Name() == defaultWorker {
			hasLead = true
			break
		}
	}

	switch {
	case len(scored) == 1:
		sel.Topology = models.TopologySequential
	case hasLead && len(scored) >= 3:
		// The lead plus at least two others: let the lead set direction.
		sel.Topology = models.TopologyHierarchical
	case len(scored) <= 2:
		sel.Topology = models.TopologyCollaborative
	default:
		sel.Topology = models.TopologyParallel
	}

	names := make([]string, len(scored))
	for i, w := range scored {
		names[i] = fmt.Sprintf("%s(%.1f)", w.Name(), scores[w.Name()])
	}
	sel.Reasoning = fmt.Sprintf("selected %s by capability score; %s topology", strings.Join(names, ", "), sel.Topology)

	return sel, nil
}
