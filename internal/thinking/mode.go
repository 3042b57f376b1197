package thinking

import (
	"fmt"
	"math"

	"github.com/fyrsmithlabs/thinkd/internal/mcts"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// Mode names a thinking-mode preset.
type Mode string

const (
	ModeAnalytical  Mode = "analytical"
	ModeCreative    Mode = "creative"
	ModeExploratory Mode = "exploratory"
	ModeConvergent  Mode = "convergent"
)

// ModeConfig controls how a session's tree is scored and guided.
type ModeConfig struct {
	// Name is the preset name.
	Name Mode `json:"name"`

	// Exploration is the UCB1 exploration constant for this session.
	Exploration float64 `json:"exploration"`

	// AutoEvaluate backpropagates the assessed confidence of each new
	// node immediately on admission.
	AutoEvaluate bool `json:"auto_evaluate"`

	// Strategy is the suggestion strategy accompanying output.
	Strategy mcts.Strategy `json:"strategy"`

	// Perspective is the guidance phrasing attached to scored nodes.
	Perspective string `json:"perspective"`
}

// presets are the built-in thinking modes.
var presets = map[Mode]ModeConfig{
	ModeAnalytical: {
		Name:         ModeAnalytical,
		Exploration:  math.Sqrt2,
		AutoEvaluate: true,
		Strategy:     mcts.StrategyBalanced,
		Perspective:  "verify each step against the evidence before moving on",
	},
	ModeCreative: {
		Name:         ModeCreative,
		Exploration:  2 * math.Sqrt2,
		AutoEvaluate: false,
		Strategy:     mcts.StrategyExplore,
		Perspective:  "branch freely; unlikely directions are worth one thought",
	},
	ModeExploratory: {
		Name:         ModeExploratory,
		Exploration:  2.0,
		AutoEvaluate: true,
		Strategy:     mcts.StrategyExplore,
		Perspective:  "map the space before committing to a line",
	},
	ModeConvergent: {
		Name:         ModeConvergent,
		Exploration:  0.5,
		AutoEvaluate: true,
		Strategy:     mcts.StrategyExploit,
		Perspective:  "narrow to the strongest line and finish it",
	},
}

// ModeByName resolves a preset. Unknown names wrap thought.ErrValidation.
func ModeByName(name string) (ModeConfig, error) {
	cfg, ok := presets[Mode(name)]
	if !ok {
		return ModeConfig{}, fmt.Errorf("%w: unknown thinking mode %q", thought.ErrValidation, name)
	}
	return cfg, nil
}

// ModeNames lists the available presets.
func ModeNames() []string {
	return []string{
		string(ModeAnalytical),
		string(ModeCreative),
		string(ModeExploratory),
		string(ModeConvergent),
	}
}
