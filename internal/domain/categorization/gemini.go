package categorization

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// DefaultModelName is the Gemini model used for classification.
const DefaultModelName = "gemini-2.0-flash"

// GeminiClassifier implements Classifier over the Gemini API. The model is
// asked for strict JSON; fenced or chatty responses are cleaned before
// decoding.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	prompt string
}

// NewGeminiClassifier creates a classifier with the taxonomy baked into the
// prompt. The caller supplies the API key; when it is empty the genai client
// falls back to the environment it reads itself.
func NewGeminiClassifier(ctx context.Context, tax *taxonomy.Taxonomy, model, apiKey string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{
		client: client,
		model:  model,
		prompt: buildPrompt(tax),
	}, nil
}

// Classify submits one transaction and decodes the model's answer. Any
// transport or decode failure surfaces as an error; the caller owns the
// fallback.
func (g *GeminiClassifier) Classify(ctx context.Context, tx transaction.Transaction) (*Prediction, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: g.prompt},
				{Text: fmt.Sprintf(
					"Transaction:\n- description: %s\n- amount: %s\n- date: %s\n- type: %s\n",
					tx.Description, tx.Amount.StringFixed(2), tx.Date.Format("2006-01-02"), tx.Type)},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var pred Prediction
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &pred); err != nil {
		return nil, fmt.Errorf("unmarshal prediction: %w\nraw response: %s", err, rawText)
	}
	return &pred, nil
}

// buildPrompt renders the taxonomy into classification instructions. Output
// shape is fixed so downstream decoding stays strict.
func buildPrompt(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("You are a financial transaction classifier for Brazilian bank statements.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Classify the transaction below into exactly one category and subcategory.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("- Output a single JSON object with fields:\n")
	b.WriteString("  - \"category\": string (one of the categories below)\n")
	b.WriteString("  - \"subcategory\": string (one of the category's subcategories)\n")
	b.WriteString("  - \"confidence\": number between 0 and 1\n\n")
	b.WriteString("Categories:\n")
	for _, cat := range tax.Categories() {
		b.WriteString("- ")
		b.WriteString(cat)
		b.WriteString(": ")
		b.WriteString(strings.Join(tax.Subcategories(cat), ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
