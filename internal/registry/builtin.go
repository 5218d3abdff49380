package registry

import (
	"github.com/soyeahso/agentplay/internal/domain"
)

// Type tags an agent can declare for its dependencies and output.
var (
	DepsTypes   = []string{"BaseDependencies", "ChatDependencies", "ResearchDependencies", "DataDependencies"}
	OutputTypes = []string{"AgentResult", "ChatResponse", "ResearchResult", "AnalysisResult"}
)

// Builtins returns the example agents that ship with the playground.
// They cannot be deleted.
func Builtins() []domain.AgentConfig {
	return []domain.AgentConfig{
		{
			Name:        "chat",
			Description: "Simple conversational AI with context management",
			Instructions: "You are a helpful and friendly AI assistant. Engage in natural conversation with users. " +
				"Be concise but informative. If you don't know something, say so honestly. " +
				"Maintain context from the conversation history when available.",
			DepsType:   "ChatDependencies",
			OutputType: "ChatResponse",
			Tools: []domain.ToolSpec{
				{Name: "get_conversation_context", Description: "Get recent conversation history for context", Kind: domain.ToolHistory, Parameters: []string{"limit"}},
				{Name: "remember_message", Description: "Remember a message in the conversation history", Kind: domain.ToolRemember, Parameters: []string{"role", "content"}},
			},
		},
		{
			Name:        "research",
			Description: "Information gathering and research agent",
			Instructions: "You are a research assistant specialized in gathering and analyzing information. " +
				"Use available tools to search for relevant information and provide comprehensive, well-sourced answers. " +
				"Always cite your sources and indicate the confidence level of your findings.",
			DepsType:   "ResearchDependencies",
			OutputType: "ResearchResult",
			Tools: []domain.ToolSpec{
				{Name: "search_information", Description: "Search for information using available sources", Kind: domain.ToolSearch, Parameters: []string{"query"}},
				{Name: "analyze_sources", Description: "Analyze and evaluate the credibility of sources", Kind: domain.ToolCredibility, Parameters: []string{"sources"}},
				{Name: "synthesize_findings", Description: "Synthesize multiple findings into a coherent summary", Kind: domain.ToolSynthesize, Parameters: []string{"findings"}},
			},
		},
		{
			Name:        "analyst",
			Description: "Data analysis and business insights agent",
			Instructions: "You are a data analyst AI assistant. You help users analyze data, identify patterns, " +
				"generate insights, and provide actionable recommendations. Use the available tools to process data " +
				"and perform statistical analysis. Always explain your methodology and assumptions clearly.",
			DepsType:   "DataDependencies",
			OutputType: "AnalysisResult",
			Tools: []domain.ToolSpec{
				{Name: "load_data", Description: "Load a local CSV or JSON file and summarize its records and columns", Kind: domain.ToolDataLoad, Parameters: []string{"data_source"}},
				{Name: "calculate_statistics", Description: "Calculate basic statistics for a list of numbers", Kind: domain.ToolStatistics, Parameters: []string{"numbers"}},
				{Name: "identify_patterns", Description: "Identify trends and outliers in a list of numbers", Kind: domain.ToolPatterns, Parameters: []string{"numbers"}},
				{Name: "generate_insights", Description: "Generate business insights from analysis results", Kind: domain.ToolInsights, Parameters: []string{"analysis_results"}},
				{Name: "recommend_actions", Description: "Generate actionable recommendations based on insights", Kind: domain.ToolRecommend, Parameters: []string{"insights"}},
			},
		},
	}
}

// Template is a starting point offered by the creation wizard.
type Template struct {
	Name           string
	Instructions   string
	DepsType       string
	OutputType     string
	SuggestedTools []domain.ToolKind
}

// Templates returns the wizard templates in menu order.
func Templates() []Template {
	return []Template{
		{
			Name:           "chat",
			Instructions:   "You are a helpful conversational AI assistant. Be friendly, informative, and engaging.",
			DepsType:       "ChatDependencies",
			OutputType:     "ChatResponse",
			SuggestedTools: []domain.ToolKind{domain.ToolEcho, domain.ToolFormat},
		},
		{
			Name:           "specialist",
			Instructions:   "You are a specialized AI expert in your domain. Provide detailed, accurate information.",
			DepsType:       "BaseDependencies",
			OutputType:     "AgentResult",
			SuggestedTools: []domain.ToolKind{domain.ToolCounter, domain.ToolFormat},
		},
		{
			Name:           "researcher",
			Instructions:   "You are a research-focused AI that gathers and analyzes information systematically.",
			DepsType:       "ResearchDependencies",
			OutputType:     "ResearchResult",
			SuggestedTools: []domain.ToolKind{domain.ToolEcho, domain.ToolCounter},
		},
		{
			Name:           "analyst",
			Instructions:   "You are an analytical AI that provides insights and recommendations based on data.",
			DepsType:       "DataDependencies",
			OutputType:     "AnalysisResult",
			SuggestedTools: []domain.ToolKind{domain.ToolFormat, domain.ToolCounter},
		},
	}
}

// PresetTool returns the ready-made spec for a suggested tool kind.
func PresetTool(kind domain.ToolKind) (domain.ToolSpec, bool) {
	switch kind {
	case domain.ToolEcho:
		return domain.ToolSpec{Name: "echo_tool", Description: "Echoes back the input message", Kind: domain.ToolEcho, Parameters: []string{"message"}}, true
	case domain.ToolFormat:
		return domain.ToolSpec{Name: "text_formatter", Description: "Formats text in different ways (upper, lower, title)", Kind: domain.ToolFormat, Parameters: []string{"text", "format_type"}}, true
	case domain.ToolCounter:
		return domain.ToolSpec{Name: "counter", Description: "A simple counter that can increment, decrement, or reset", Kind: domain.ToolCounter, Parameters: []string{"action"}}, true
	}
	return domain.ToolSpec{}, false
}
