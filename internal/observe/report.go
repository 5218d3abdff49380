package observe

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// ToolCount aggregates the uses of one tool.
type ToolCount struct {
	Tool  string        `json:"tool"`
	Count int           `json:"count"`
	Total time.Duration `json:"total_time"`
}

// Summary aggregates the finished observations of one agent.
type Summary struct {
	Agent     string        `json:"agent_name"`
	Count     int           `json:"total_observations"`
	Completed int           `json:"completed_observations"`
	Errors    int           `json:"errors"`
	Mean      time.Duration `json:"avg_execution_time"`
	Min       time.Duration `json:"min_execution_time"`
	Max       time.Duration `json:"max_execution_time"`
	ToolUses  int           `json:"total_tools_used"`
	TopTools  []ToolCount   `json:"most_used_tools"`
}

// ErrorRate is the share of observations that failed.
func (s Summary) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count)
}

const topToolLimit = 5

// Summary aggregates the observations recorded for agent. Timing and tool
// figures only cover completed observations.
func (o *Observer) Summary(agent string) Summary {
	return summarize(agent, o.Observations())
}

func summarize(agent string, all []Observation) Summary {
	s := Summary{Agent: agent}
	var total time.Duration
	counts := make(map[string]*ToolCount)

	for _, obs := range all {
		if obs.Agent != agent {
			continue
		}
		s.Count++
		if obs.Status != StatusCompleted {
			s.Errors++
			continue
		}
		s.Completed++
		total += obs.Elapsed
		if s.Completed == 1 || obs.Elapsed < s.Min {
			s.Min = obs.Elapsed
		}
		if obs.Elapsed > s.Max {
			s.Max = obs.Elapsed
		}
		for _, u := range obs.Tools {
			s.ToolUses++
			tc, ok := counts[u.Tool]
			if !ok {
				tc = &ToolCount{Tool: u.Tool}
				counts[u.Tool] = tc
			}
			tc.Count++
			tc.Total += u.Elapsed
		}
	}
	if s.Completed > 0 {
		s.Mean = total / time.Duration(s.Completed)
	}

	for _, tc := range counts {
		s.TopTools = append(s.TopTools, *tc)
	}
	sort.Slice(s.TopTools, func(i, j int) bool {
		if s.TopTools[i].Count != s.TopTools[j].Count {
			return s.TopTools[i].Count > s.TopTools[j].Count
		}
		return s.TopTools[i].Tool < s.TopTools[j].Tool
	})
	if len(s.TopTools) > topToolLimit {
		s.TopTools = s.TopTools[:topToolLimit]
	}
	return s
}

const recentLimit = 5

// Report renders a plain-text report over every agent seen so far and the
// most recent observations.
func (o *Observer) Report() string {
	all := o.Observations()
	if len(all) == 0 {
		return "No observations recorded yet."
	}

	var b strings.Builder
	b.WriteString("Agent Observation Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Total Observations: %d\n\n", len(all))

	var agents []string
	for _, obs := range all {
		if !slices.Contains(agents, obs.Agent) {
			agents = append(agents, obs.Agent)
		}
	}
	sort.Strings(agents)

	for _, agent := range agents {
		s := summarize(agent, all)
		fmt.Fprintf(&b, "Agent: %s\n", agent)
		fmt.Fprintf(&b, "   Observations: %d\n", s.Count)
		fmt.Fprintf(&b, "   Completed: %d\n", s.Completed)
		fmt.Fprintf(&b, "   Error Rate: %.1f%%\n", s.ErrorRate()*100)
		if s.Completed > 0 {
			fmt.Fprintf(&b, "   Avg Execution Time: %.2fs\n", s.Mean.Seconds())
			fmt.Fprintf(&b, "   Tools Used: %d\n", s.ToolUses)
			if len(s.TopTools) > 0 {
				names := make([]string, 0, 3)
				for _, tc := range s.TopTools[:min(3, len(s.TopTools))] {
					names = append(names, tc.Tool)
				}
				fmt.Fprintf(&b, "   Most Used Tools: %s\n", strings.Join(names, ", "))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Recent Observations:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	recent := slices.Clone(all)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Start.After(recent[j].Start) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	for _, obs := range recent {
		fmt.Fprintf(&b, "[%s] %s | %s | %.2fs | %d tools\n",
			obs.Status, obs.ID, obs.Agent, obs.Elapsed.Seconds(), len(obs.Tools))
	}
	return strings.TrimRight(b.String(), "\n")
}
