package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/thinkd/internal/history"
	"github.com/fyrsmithlabs/thinkd/internal/mcts"
	"github.com/fyrsmithlabs/thinkd/internal/metrics"
	"github.com/fyrsmithlabs/thinkd/internal/security"
	"github.com/fyrsmithlabs/thinkd/internal/thinking"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerThoughtTools()
	s.registerTreeTools()
	s.registerIntrospectionTools()
}

// instrument wraps a handler invocation in the standard metrics pattern.
// The returned func must be deferred; errp is read at defer time.
func (s *Server) instrument(ctx context.Context, tool string, errp *error) func() {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func() {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), *errp)
	}
}

// thinkingSvc returns the tree manager or an error when tree mode is off.
func (s *Server) thinkingSvc() (*thinking.Manager, error) {
	m := s.registry.Thinking()
	if m == nil {
		return nil, fmt.Errorf("%w: tree mode is disabled", thought.ErrValidation)
	}
	return m, nil
}

// ===== THOUGHT TOOLS =====

type submitThoughtInput struct {
	Thought           string `json:"thought" jsonschema:"required,The thought content"`
	ThoughtNumber     int    `json:"thought_number" jsonschema:"required,1-based position in the reasoning chain"`
	TotalThoughts     int    `json:"total_thoughts" jsonschema:"required,Current estimate of total chain length"`
	NextThoughtNeeded bool   `json:"next_thought_needed" jsonschema:"Whether another thought follows"`
	SessionID         string `json:"session_id,omitempty" jsonschema:"Session identifier (synthesized when omitted)"`
	IsRevision        bool   `json:"is_revision,omitempty" jsonschema:"Marks this thought as a correction of a prior one"`
	RevisesThought    int    `json:"revises_thought,omitempty" jsonschema:"Thought number being corrected"`
	BranchFromThought int    `json:"branch_from_thought,omitempty" jsonschema:"Thought number this branch diverges from"`
	BranchID          string `json:"branch_id,omitempty" jsonschema:"Branch identifier"`
}

type submitThoughtOutput struct {
	ThoughtNumber     int              `json:"thought_number" jsonschema:"Echoed thought number"`
	TotalThoughts     int              `json:"total_thoughts" jsonschema:"Echoed total estimate"`
	NextThoughtNeeded bool             `json:"next_thought_needed" jsonschema:"Echoed continuation flag"`
	SessionID         string           `json:"session_id" jsonschema:"Effective session id (synthesized when none was given)"`
	BranchID          string           `json:"branch_id,omitempty" jsonschema:"Branch the thought was stored under"`
	Branches          []string         `json:"branches" jsonschema:"Known branch identifiers"`
	HistoryLength     int              `json:"history_length" jsonschema:"Current main-sequence length"`
	Tree              *thinking.Result `json:"tree,omitempty" jsonschema:"Tree-mode admission result when tree mode is active"`
}

func (s *Server) registerThoughtTools() {
	// submit_thought
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "submit_thought",
		Description: "Record one step of sequential reasoning, with optional revision and branch markers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args submitThoughtInput) (*mcp.CallToolResult, submitThoughtOutput, error) {
		var toolErr error
		done := s.instrument(ctx, "submit_thought", &toolErr)
		start := time.Now()
		defer func() {
			done()
			if c := s.registry.Metrics(); c != nil {
				c.RecordRequest(time.Since(start), toolErr == nil)
			}
		}()

		guard := s.registry.Guard()
		if args.SessionID != "" && !guard.ValidateSession(args.SessionID) {
			toolErr = fmt.Errorf("%w: session id must be 1-%d characters",
				thought.ErrValidation, security.MaxSessionIDLength)
			return nil, submitThoughtOutput{}, toolErr
		}
		if err := guard.ValidateThought(args.Thought, args.SessionID); err != nil {
			toolErr = err
			return nil, submitThoughtOutput{}, toolErr
		}

		rec := &thought.Record{
			Content:          guard.SanitizeContent(args.Thought),
			Number:           args.ThoughtNumber,
			TotalExpected:    args.TotalThoughts,
			NextNeeded:       args.NextThoughtNeeded,
			SessionID:        args.SessionID,
			IsRevision:       args.IsRevision,
			RevisesNumber:    args.RevisesThought,
			BranchFromNumber: args.BranchFromThought,
			BranchID:         args.BranchID,
		}

		store := s.registry.History()
		stored, err := store.Add(rec)
		if err != nil {
			toolErr = err
			return nil, submitThoughtOutput{}, toolErr
		}

		s.registry.Sessions().RecordThought(stored.SessionID)
		if c := s.registry.Metrics(); c != nil {
			c.RecordThought(stored)
		}

		var treeResult *thinking.Result
		if m := s.registry.Thinking(); m != nil {
			treeResult, err = m.RecordThought(ctx, stored)
			if err != nil {
				toolErr = fmt.Errorf("tree admission failed: %w", err)
				return nil, submitThoughtOutput{}, toolErr
			}
		}

		out := submitThoughtOutput{
			ThoughtNumber:     stored.Number,
			TotalThoughts:     stored.TotalExpected,
			NextThoughtNeeded: stored.NextNeeded,
			SessionID:         stored.SessionID,
			BranchID:          stored.BranchID,
			Branches:          branchNames(store),
			HistoryLength:     store.Stats().TotalThoughts,
			Tree:              treeResult,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Thought %d/%d recorded in session %s",
					out.ThoughtNumber, out.TotalThoughts, out.SessionID)},
			},
		}, out, nil
	})
}

func branchNames(store *history.Store) []string {
	counts := store.Stats().BranchCounts
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ===== TREE TOOLS =====

type backtrackInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	NodeID    string `json:"node_id" jsonschema:"required,Node to move the cursor to"`
}

type evaluateNodeInput struct {
	SessionID string  `json:"session_id" jsonschema:"required,Session identifier"`
	NodeID    string  `json:"node_id" jsonschema:"required,Node to score"`
	Score     float64 `json:"score" jsonschema:"required,Quality score backpropagated to the root"`
}

type evaluateNodeOutput struct {
	UpdatedNodes int `json:"updated_nodes" jsonschema:"Nodes whose statistics changed"`
}

type suggestNextInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	Strategy  string `json:"strategy,omitempty" jsonschema:"Suggestion strategy: explore exploit or balanced (defaults to the session mode's strategy)"`
}

type getSummaryInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"Depth limit for the serialized tree (0 means unlimited)"`
}

type getSummaryOutput struct {
	Tree     json.RawMessage `json:"tree" jsonschema:"Serialized thought tree rooted at the first thought"`
	Stats    mcts.Stats      `json:"stats" jsonschema:"Aggregate tree statistics"`
	BestPath []mcts.NodeInfo `json:"best_path" jsonschema:"Highest-value path from the root"`
}

type setThinkingModeInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session identifier"`
	Mode      string `json:"mode" jsonschema:"required,Mode preset: analytical creative exploratory or convergent"`
}

func (s *Server) registerTreeTools() {
	// backtrack
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "backtrack",
		Description: "Move a session's reasoning cursor back to an earlier node",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args backtrackInput) (*mcp.CallToolResult, mcts.NodeInfo, error) {
		var toolErr error
		defer s.instrument(ctx, "backtrack", &toolErr)()

		m, err := s.thinkingSvc()
		if err != nil {
			toolErr = err
			return nil, mcts.NodeInfo{}, toolErr
		}
		info, err := m.Backtrack(args.SessionID, args.NodeID)
		if err != nil {
			toolErr = err
			return nil, mcts.NodeInfo{}, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Cursor moved to node %s (thought %d)", info.ID, info.Number)},
			},
		}, *info, nil
	})

	// evaluate_node
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "evaluate_node",
		Description: "Assign a quality score to a node and backpropagate it to the root",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args evaluateNodeInput) (*mcp.CallToolResult, evaluateNodeOutput, error) {
		var toolErr error
		defer s.instrument(ctx, "evaluate_node", &toolErr)()

		m, err := s.thinkingSvc()
		if err != nil {
			toolErr = err
			return nil, evaluateNodeOutput{}, toolErr
		}
		updated, err := m.Evaluate(args.SessionID, args.NodeID, args.Score)
		if err != nil {
			toolErr = err
			return nil, evaluateNodeOutput{}, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Score %.3f propagated through %d nodes", args.Score, updated)},
			},
		}, evaluateNodeOutput{UpdatedNodes: updated}, nil
	})

	// suggest_next
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "suggest_next",
		Description: "Rank expandable nodes and suggest where to continue reasoning",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args suggestNextInput) (*mcp.CallToolResult, mcts.Suggestion, error) {
		var toolErr error
		defer s.instrument(ctx, "suggest_next", &toolErr)()

		m, err := s.thinkingSvc()
		if err != nil {
			toolErr = err
			return nil, mcts.Suggestion{}, toolErr
		}
		suggestion, err := m.Suggest(args.SessionID, mcts.Strategy(args.Strategy))
		if err != nil {
			toolErr = err
			return nil, mcts.Suggestion{}, toolErr
		}

		text := "All nodes are terminal; nothing to expand"
		if suggestion.Suggestion != nil {
			text = fmt.Sprintf("Continue from node %s (score %.3f, %d alternatives)",
				suggestion.Suggestion.ID, suggestion.Score, len(suggestion.Alternatives))
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, *suggestion, nil
	})

	// get_summary
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_summary",
		Description: "Serialize a session's thought tree with aggregate statistics and the best path",
	}, s.handleGetSummary)

	// set_thinking_mode
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_thinking_mode",
		Description: "Attach a thinking-mode preset (analytical, creative, exploratory, convergent) to a session",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args setThinkingModeInput) (*mcp.CallToolResult, thinking.ModeConfig, error) {
		var toolErr error
		defer s.instrument(ctx, "set_thinking_mode", &toolErr)()

		m, err := s.thinkingSvc()
		if err != nil {
			toolErr = err
			return nil, thinking.ModeConfig{}, toolErr
		}
		cfg, err := m.SetMode(args.SessionID, args.Mode)
		if err != nil {
			toolErr = err
			return nil, thinking.ModeConfig{}, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Session %s now thinking in %s mode", args.SessionID, cfg.Name)},
			},
		}, *cfg, nil
	})
}

// handleGetSummary serializes a session's tree. The serialized tree is a
// recursive structure, which the SDK's schema inference cannot express, so
// it crosses the tool boundary as an opaque JSON payload.
func (s *Server) handleGetSummary(ctx context.Context, req *mcp.CallToolRequest, args getSummaryInput) (*mcp.CallToolResult, getSummaryOutput, error) {
	var toolErr error
	defer s.instrument(ctx, "get_summary", &toolErr)()

	m, err := s.thinkingSvc()
	if err != nil {
		toolErr = err
		return nil, getSummaryOutput{}, toolErr
	}
	maxDepth := args.MaxDepth
	if maxDepth <= 0 {
		maxDepth = -1
	}
	summary, err := m.Summary(args.SessionID, maxDepth)
	if err != nil {
		toolErr = err
		return nil, getSummaryOutput{}, toolErr
	}
	treeJSON, err := json.Marshal(summary.Tree)
	if err != nil {
		toolErr = fmt.Errorf("serialize tree: %w", err)
		return nil, getSummaryOutput{}, toolErr
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Tree has %d nodes, max depth %d",
				summary.Stats.TotalNodes, summary.Stats.MaxDepth)},
		},
	}, getSummaryOutput{Tree: treeJSON, Stats: summary.Stats, BestPath: summary.BestPath}, nil
}

// ===== INTROSPECTION TOOLS =====

type getHistoryInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Only return thoughts from this session"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum thoughts to return newest-last (0 means all)"`
}

type getHistoryOutput struct {
	Thoughts []*thought.Record `json:"thoughts" jsonschema:"Stored thoughts oldest first"`
	Count    int               `json:"count" jsonschema:"Number of thoughts returned"`
}

type getStatsOutput struct {
	History        history.Stats   `json:"history" jsonschema:"History store statistics"`
	Security       security.Status `json:"security" jsonschema:"Guard status"`
	ActiveSessions int             `json:"active_sessions" jsonschema:"Sessions active within the tracker threshold"`
	TreeSessions   int             `json:"tree_sessions" jsonschema:"Sessions with a live thought tree"`
}

type clearHistoryOutput struct {
	Cleared int `json:"cleared" jsonschema:"Thoughts removed from the main sequence"`
}

func (s *Server) registerIntrospectionTools() {
	// get_history
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_history",
		Description: "Return the stored thought sequence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getHistoryInput) (*mcp.CallToolResult, getHistoryOutput, error) {
		var toolErr error
		defer s.instrument(ctx, "get_history", &toolErr)()

		limit := args.Limit
		if limit <= 0 {
			limit = -1
		}

		var thoughts []*thought.Record
		if args.SessionID == "" {
			thoughts = s.registry.History().History(limit)
		} else {
			// Session filtering applies before the limit so the newest
			// records of that session are kept.
			for _, rec := range s.registry.History().History(-1) {
				if rec.SessionID == args.SessionID {
					thoughts = append(thoughts, rec)
				}
			}
			if limit > 0 && len(thoughts) > limit {
				thoughts = thoughts[len(thoughts)-limit:]
			}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d thoughts in history", len(thoughts))},
			},
		}, getHistoryOutput{Thoughts: thoughts, Count: len(thoughts)}, nil
	})

	// get_stats
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_stats",
		Description: "Report history, security, and session statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, getStatsOutput, error) {
		var toolErr error
		defer s.instrument(ctx, "get_stats", &toolErr)()

		out := getStatsOutput{
			History:        s.registry.History().Stats(),
			Security:       s.registry.Guard().Status(),
			ActiveSessions: s.registry.Sessions().ActiveCount(),
		}
		if m := s.registry.Thinking(); m != nil {
			out.TreeSessions = m.SessionCount()
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d thoughts, %d branches, %d active sessions",
					out.History.TotalThoughts, len(out.History.BranchCounts), out.ActiveSessions)},
			},
		}, out, nil
	})

	// get_metrics
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_metrics",
		Description: "Report request and thought throughput metrics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, metrics.Snapshot, error) {
		var toolErr error
		defer s.instrument(ctx, "get_metrics", &toolErr)()

		var snap metrics.Snapshot
		if c := s.registry.Metrics(); c != nil {
			snap = c.Snapshot()
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d requests total, %d thoughts/minute",
					snap.TotalRequests, snap.ThoughtsPerMinute)},
			},
		}, snap, nil
	})

	// clear_history
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_history",
		Description: "Remove all stored thoughts and branches",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, clearHistoryOutput, error) {
		var toolErr error
		defer s.instrument(ctx, "clear_history", &toolErr)()

		store := s.registry.History()
		cleared := store.Stats().TotalThoughts
		store.Clear()
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Cleared %d thoughts", cleared)},
			},
		}, clearHistoryOutput{Cleared: cleared}, nil
	})
}
