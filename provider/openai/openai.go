package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hotstory/radar/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements the provider interface using OpenAI's API
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, baseURL, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// CreateEmbedding generates an embedding for the given texts using OpenAI's API
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for i, d := range openaiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// AnalyzeHotness scores a cluster of articles and extracts structured analysis.
// The model is forced into JSON mode so the response parses into
// models.HotnessAnalysis or fails loudly.
func (c *client) AnalyzeHotness(ctx context.Context, articles []models.Article) (models.HotnessAnalysis, error) {
	if len(articles) == 0 {
		return models.HotnessAnalysis{}, fmt.Errorf("no articles to analyze")
	}

	var sb strings.Builder
	for i, article := range articles {
		content := article.Content
		if len(content) > 1000 {
			content = content[:1000]
		}
		fmt.Fprintf(&sb, "Article %d:\nTitle: %s\nSource: %s\nPublished: %s\nContent: %s\nURL: %s\n\n",
			i+1, article.Title, article.Source, article.PublishedAt.Format(time.RFC3339), content, article.URL)
	}

	systemPrompt := `You are a financial analyst specialized in detecting "hot" news that can move markets.
Score the provided news cluster and respond with a single JSON object matching this schema:
{
  "hotness": {
    "overall": 0-1,
    "unexpectedness": 0-1,
    "materiality": 0-1,
    "velocity": 0-1,
    "breadth": 0-1,
    "credibility": 0-1,
    "reasoning": "detailed explanation"
  },
  "entities": [{"name": "...", "type": "company|ticker|sector|country|person", "relevance": 0-1, "ticker": "optional"}],
  "timeline": [{"timestamp": "RFC3339", "description": "...", "source_url": "...", "event_type": "first_mention|confirmation|update|correction"}],
  "why_now": "1-2 sentences explaining immediate significance",
  "headline": "concise headline"
}
Be precise and analytical. Low-significance news should get low scores.`

	content, err := c.chat(ctx, systemPrompt, sb.String(), true)
	if err != nil {
		return models.HotnessAnalysis{}, err
	}

	var analysis models.HotnessAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &analysis); err != nil {
		return models.HotnessAnalysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if analysis.Headline == "" {
		return models.HotnessAnalysis{}, fmt.Errorf("analysis missing headline")
	}
	return analysis, nil
}

// GenerateDraft writes a publication-ready draft for a scored story.
func (c *client) GenerateDraft(ctx context.Context, req models.DraftRequest) (string, error) {
	var articles strings.Builder
	for i, article := range req.Articles {
		if i >= 5 {
			break
		}
		content := article.Content
		if len(content) > 300 {
			content = content[:300]
		}
		fmt.Fprintf(&articles, "\nSource %d (%s):\n%s\n%s...\nURL: %s\n", i+1, article.Source, article.Title, content, article.URL)
	}

	entities := make([]string, 0, len(req.Entities))
	for i, e := range req.Entities {
		if i >= 10 {
			break
		}
		label := fmt.Sprintf("%s (%s)", e.Name, e.Type)
		if e.Ticker != "" {
			label += " [" + e.Ticker + "]"
		}
		entities = append(entities, label)
	}

	var timeline strings.Builder
	for i, event := range req.Timeline {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&timeline, "- %s: %s\n", event.Timestamp.Format("2006-01-02 15:04"), event.Description)
	}

	userPrompt := fmt.Sprintf(`Story headline: %s

Why this matters now: %s

Key entities: %s

Timeline:
%s
Source material:
%s
Analysis context: %s

Write a professional financial news article with a compelling headline, a 2-3 sentence lead,
three key bullet points with concrete details, a market context paragraph, a "what we know"
summary, and a source list. Be factual, cite specific figures and dates, avoid speculation,
and keep it to 300-400 words.`,
		req.Headline, req.WhyNow, strings.Join(entities, ", "), timeline.String(), articles.String(), req.Reasoning)

	return c.chat(ctx, "You are a financial news editor producing publication-ready drafts.", userPrompt, false)
}

// Summarize produces a strict 2-3 sentence summary of one article.
func (c *client) Summarize(ctx context.Context, article models.Article) (string, error) {
	content := article.Content
	if len(content) > 2000 {
		content = content[:2000]
	}
	userPrompt := fmt.Sprintf(`Summarize this news item in STRICTLY 2-3 sentences.

Title: %s

Content:
%s

Requirements:
- At most 3 sentences, each carrying concrete information
- First sentence: WHAT happened
- Second sentence: WHO/WHERE/WHEN details
- Third sentence (optional): consequences or significance
- No filler like "the article says"
- Concrete figures, names, facts`, article.Title, content)

	return c.chat(ctx, "You produce terse factual news summaries.", userPrompt, false)
}

func (c *client) SynthesizeResearch(ctx context.Context, headline string, whyNow string, sources []models.ResearchSource) (string, error) {
	var sb strings.Builder
	for i, src := range sources {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", src.Title, src.URL, src.Snippet)
	}
	userPrompt := fmt.Sprintf(`You are researching a developing financial story.

Headline: %s
Why it matters now: %s

Web findings:
%s

Write a research brief of 150-250 words covering:
- background and context the headline omits
- what the web findings add, confirm, or contradict
- open questions a desk editor should watch

Plain prose, no headings, no bullet lists.`, headline, whyNow, sb.String())

	return c.chat(ctx, "You are a financial research analyst.", userPrompt, false)
}

func (c *client) chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: c.completionModel,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
