package tools

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// synthesizeTool groups findings by their leading word.
type synthesizeTool struct{ base }

func (t *synthesizeTool) InputSchema() string {
	return `{"type":"object","properties":{"findings":{"type":"array","items":{"type":"string"}}},"required":["findings"]}`
}

func (t *synthesizeTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		Findings []string `json:"findings"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if len(in.Findings) == 0 {
		return "No findings to synthesize", nil
	}

	var order []string
	themes := make(map[string][]string)
	for _, f := range in.Findings {
		theme := "General"
		if words := strings.Fields(f); len(words) > 0 {
			theme = words[0]
		}
		if _, ok := themes[theme]; !ok {
			order = append(order, theme)
		}
		themes[theme] = append(themes[theme], f)
	}

	title := cases.Title(language.Und)
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesis of %d findings:\n", len(in.Findings))
	for _, theme := range order {
		fmt.Fprintf(&b, "\n%s theme:\n", title.String(theme))
		for _, f := range themes[theme] {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String(), nil
}

const sampleRows = 3

// dataLoadTool reads a local CSV or JSON file and summarizes its shape.
type dataLoadTool struct{ base }

func (t *dataLoadTool) InputSchema() string {
	return `{"type":"object","properties":{"data_source":{"type":"string","description":"path to a .csv or .json file"}},"required":["data_source"]}`
}

// dataSummary is what the model gets back from load_data.
type dataSummary struct {
	Records int              `json:"records"`
	Columns []string         `json:"columns"`
	Sample  []map[string]any `json:"sample"`
}

func (t *dataLoadTool) Execute(_ context.Context, input string) (string, error) {
	var in struct {
		DataSource string `json:"data_source"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.DataSource) == "" {
		return "", fmt.Errorf("data_source is required")
	}

	var (
		summary dataSummary
		err     error
	)
	switch strings.ToLower(filepath.Ext(in.DataSource)) {
	case ".csv":
		summary, err = loadCSV(in.DataSource)
	case ".json":
		summary, err = loadJSON(in.DataSource)
	default:
		return "", fmt.Errorf("unsupported data source %q (want .csv or .json)", in.DataSource)
	}
	if err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Loaded data from %s:\n%s", in.DataSource, out), nil
}

func loadCSV(path string) (dataSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataSummary{}, fmt.Errorf("loading %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return dataSummary{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return dataSummary{Columns: []string{}, Sample: []map[string]any{}}, nil
	}

	header, records := rows[0], rows[1:]
	summary := dataSummary{Records: len(records), Columns: header, Sample: []map[string]any{}}
	for _, rec := range records[:min(sampleRows, len(records))] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		summary.Sample = append(summary.Sample, row)
	}
	return summary, nil
}

// loadJSON accepts an array of objects.
func loadJSON(path string) (dataSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dataSummary{}, fmt.Errorf("loading %s: %w", path, err)
	}
	var records []map[string]any
	if err := DecodeLenient(data, &records); err != nil {
		return dataSummary{}, fmt.Errorf("parsing %s: expected an array of objects: %w", path, err)
	}

	summary := dataSummary{Records: len(records), Columns: []string{}, Sample: []map[string]any{}}
	seen := make(map[string]bool)
	for _, rec := range records {
		for col := range rec {
			if !seen[col] {
				seen[col] = true
				summary.Columns = append(summary.Columns, col)
			}
		}
	}
	slices.Sort(summary.Columns)
	summary.Sample = append(summary.Sample, records[:min(sampleRows, len(records))]...)
	return summary, nil
}

var (
	insights = []string{
		"Category X items show 23% higher values on average",
		"Peak performance periods align with marketing campaigns",
		"Data quality issues may impact accuracy of trend analysis",
		"Opportunity exists to optimize category Y performance",
	}
	recommendations = []string{
		"Implement data validation checks for improved quality",
		"Focus marketing efforts during identified peak periods",
		"Investigate success factors for category X items",
		"Establish regular monitoring for outlier detection",
	}
)

// listTool returns a fixed, headed bullet list; the insight and
// recommendation tools have no analysis backend behind them.
type listTool struct {
	base
	param   string
	heading string
	items   []string
}

func (t *listTool) InputSchema() string {
	return fmt.Sprintf(`{"type":"object","properties":{%q:{"type":"string"}}}`, t.param)
}

func (t *listTool) Execute(_ context.Context, input string) (string, error) {
	var in map[string]any
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	return t.heading + "\n- " + strings.Join(t.items, "\n- "), nil
}
