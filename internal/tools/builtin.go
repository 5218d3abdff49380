package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/agentplay/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// echoTool returns its message unchanged.
type echoTool struct{ base }

func (t *echoTool) InputSchema() string {
	return `{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`
}

func (t *echoTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	return "Echo: " + in.Message, nil
}

// formatTool changes the case of text.
type formatTool struct{ base }

func (t *formatTool) InputSchema() string {
	return `{"type":"object","properties":{"text":{"type":"string"},"format_type":{"type":"string","enum":["upper","lower","title"]}},"required":["text"]}`
}

func (t *formatTool) Execute(_ context.Context, input string) (string, error) {
	in := struct {
		Text       string `json:"text"`
		FormatType string `json:"format_type"`
	}{FormatType: "upper"}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	switch in.FormatType {
	case "upper":
		return strings.ToUpper(in.Text), nil
	case "lower":
		return strings.ToLower(in.Text), nil
	case "title":
		return cases.Title(language.Und).String(in.Text), nil
	default:
		return in.Text, nil
	}
}

// counterTool keeps an integer that lives as long as the agent definition.
type counterTool struct {
	base
	mu    sync.Mutex
	count int
}

func (t *counterTool) InputSchema() string {
	return `{"type":"object","properties":{"action":{"type":"string","enum":["increment","decrement","reset"]}}}`
}

func (t *counterTool) Execute(_ context.Context, input string) (string, error) {
	in := struct {
		Action string `json:"action"`
	}{Action: "increment"}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch in.Action {
	case "increment":
		t.count++
	case "decrement":
		t.count--
	case "reset":
		t.count = 0
	}
	return fmt.Sprintf("Counter: %d", t.count), nil
}

// passthroughTool acknowledges its input; it backs custom tools with no
// specific behavior.
type passthroughTool struct{ base }

func (t *passthroughTool) InputSchema() string {
	return `{"type":"object","properties":{"input_param":{"type":"string"}},"required":["input_param"]}`
}

func (t *passthroughTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		InputParam string `json:"input_param"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	return fmt.Sprintf("Tool '%s' processed: %s", t.name, in.InputParam), nil
}

const (
	defaultHistoryLimit = 5
	maxRemembered       = 20
)

// notebook holds messages an agent chose to remember. It is shared by the
// tools of one agent and outlives individual runs.
type notebook struct {
	mu      sync.Mutex
	entries []domain.ConversationEntry
}

func (n *notebook) add(e domain.ConversationEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, e)
	if len(n.entries) > maxRemembered {
		n.entries = n.entries[len(n.entries)-maxRemembered:]
	}
}

func (n *notebook) list() []domain.ConversationEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.entries)
}

// historyTool renders the most recent conversation entries, followed by
// anything the agent remembered.
type historyTool struct {
	base
	notes *notebook
}

func (t *historyTool) InputSchema() string {
	return `{"type":"object","properties":{"limit":{"type":"integer","minimum":1}}}`
}

func (t *historyTool) Execute(ctx context.Context, input string) (string, error) {
	in := struct {
		Limit int `json:"limit"`
	}{Limit: defaultHistoryLimit}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if in.Limit <= 0 {
		in.Limit = defaultHistoryLimit
	}

	history := slices.Concat(HistoryFrom(ctx), t.notes.list())
	if len(history) == 0 {
		return "No previous conversation history available", nil
	}
	if len(history) > in.Limit {
		history = history[len(history)-in.Limit:]
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, e := range history {
		fmt.Fprintf(&b, "- %s: %s\n", e.Role, e.Text)
	}
	return b.String(), nil
}

// rememberTool appends a message to the agent's notebook.
type rememberTool struct {
	base
	notes *notebook
}

func (t *rememberTool) InputSchema() string {
	return `{"type":"object","properties":{"role":{"type":"string"},"content":{"type":"string"}},"required":["role","content"]}`
}

func (t *rememberTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("content is required")
	}
	if in.Role == "" {
		in.Role = string(domain.RoleUser)
	}

	t.notes.add(domain.ConversationEntry{
		Role:      domain.Role(in.Role),
		Text:      in.Content,
		Timestamp: time.Now(),
	})
	return fmt.Sprintf("Remembered %s message in conversation history", in.Role), nil
}

// searchTool returns placeholder results; no search backend is wired.
type searchTool struct{ base }

func (t *searchTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`
}

func (t *searchTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found 3 results for '%s':\n", in.Query)
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "- Mock search result %d for '%s'\n", i, in.Query)
	}
	return b.String(), nil
}

// credibilityTool rates sources by their domain.
type credibilityTool struct{ base }

func (t *credibilityTool) InputSchema() string {
	return `{"type":"object","properties":{"sources":{"type":"array","items":{"type":"string"}}},"required":["sources"]}`
}

func (t *credibilityTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		Sources []string `json:"sources"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if len(in.Sources) == 0 {
		return "No sources provided for analysis", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d sources:\n", len(in.Sources))
	for i, src := range in.Sources {
		fmt.Fprintf(&b, "%d. %s - Credibility: %s\n", i+1, src, credibility(src))
	}
	return b.String(), nil
}

func credibility(source string) string {
	if strings.Contains(source, "edu") || strings.Contains(source, "gov") {
		return "High"
	}
	return "Medium"
}

// Stats is the result of the statistics tool.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe computes population statistics over values. values must be non-empty.
func Describe(values []float64) Stats {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	return Stats{
		Count:  n,
		Mean:   mean,
		Median: median,
		Std:    math.Sqrt(variance),
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

type numbersInput struct {
	Numbers []float64 `json:"numbers"`
	Data    string    `json:"data"`
}

// values accepts either a numbers array or a comma/space separated string.
func (in numbersInput) values() ([]float64, error) {
	if len(in.Numbers) > 0 {
		return in.Numbers, nil
	}
	fields := strings.FieldsFunc(in.Data, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == ';'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", f)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no numbers provided")
	}
	return out, nil
}

const numbersSchema = `{"type":"object","properties":{"numbers":{"type":"array","items":{"type":"number"}},"data":{"type":"string"}}}`

// statisticsTool computes descriptive statistics.
type statisticsTool struct{ base }

func (t *statisticsTool) InputSchema() string { return numbersSchema }

func (t *statisticsTool) Execute(_ context.Context, input string) (string, error) {
	var in numbersInput
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	values, err := in.values()
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(Describe(values), "", "  ")
	if err != nil {
		return "", err
	}
	return "Statistics:\n" + string(out), nil
}

// patternsTool reports a coarse trend and outliers.
type patternsTool struct{ base }

func (t *patternsTool) InputSchema() string { return numbersSchema }

func (t *patternsTool) Execute(_ context.Context, input string) (string, error) {
	var in numbersInput
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	values, err := in.values()
	if err != nil {
		return "", err
	}

	var patterns []string
	patterns = append(patterns, "Trend: "+trend(values))

	st := Describe(values)
	var outliers []string
	if st.Std > 0 {
		for _, v := range values {
			if math.Abs(v-st.Mean) > 2*st.Std {
				outliers = append(outliers, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
	}
	if len(outliers) > 0 {
		patterns = append(patterns, "Outliers (>2 std from mean): "+strings.Join(outliers, ", "))
	} else {
		patterns = append(patterns, "No outliers detected")
	}
	patterns = append(patterns, fmt.Sprintf("Range: %g to %g", st.Min, st.Max))

	return "Identified patterns:\n- " + strings.Join(patterns, "\n- "), nil
}

// trend compares the mean of the first and second halves of the series.
func trend(values []float64) string {
	if len(values) < 2 {
		return "insufficient data"
	}
	half := len(values) / 2
	first := Describe(values[:half]).Mean
	second := Describe(values[len(values)-half:]).Mean

	scale := math.Max(math.Abs(first), 1e-9)
	change := (second - first) / scale
	switch {
	case change > 0.05:
		return "increasing"
	case change < -0.05:
		return "decreasing"
	default:
		return "flat"
	}
}
