package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
)

const systemPrompt = `You classify US FOIA-released documents for partisan political content.
Treat Democrats and Republicans symmetrically. Base judgments only on the provided text.
Return STRICT JSON matching the requested schema.`

const classificationTemplate = `You will receive the text of a document released under the US Freedom of Information Act (FOIA).
Carefully read the document text, then classify it per the schema.

Definitions (apply these equally to Democrats and Republicans):
1. Partisan actors include the Democratic and Republican parties, their candidates,
   elected officials, party committees, and campaign staff.
2. Wrongdoing includes allegations or evidence of illegal acts, corruption, serious ethics
   violations, or abuse of office. Policy disagreement alone is not wrongdoing.
3. Favorability reflects whether the document portrays a party positively or negatively.

Return JSON with keys:
- political_relevance: "none" | "low" | "high"
- main_partisan_targets: list of {name, party (D/R/mixed/unknown), role}
- wrongdoing_assessment: {overall_wrongdoing_probability, wrongdoing_by_party: {D, R}}
- favorability_assessment: {overall_valence_party: {D, R}, favorability_scores: {D, R}}
- notes: 1-3 sentences of rationale.

DOCUMENT_ID: %s
DOCUMENT_TEXT:
"""%s"""`

// ClassifierConfig represents the configuration for the remote structured
// classification call.
type ClassifierConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	// MaxCharsPerDoc truncates the document text sent out.
	MaxCharsPerDoc int
}

// Classifier sends document text to an OpenAI-compatible model in JSON mode
// and decodes its structured response.
type Classifier struct {
	config ClassifierConfig
	llm    llms.Model
}

func NewClassifierWithConfig(config ClassifierConfig) (*Classifier, error) {
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	if config.MaxCharsPerDoc == 0 {
		config.MaxCharsPerDoc = 20000
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: classifier API key is missing", errs.ErrConfig)
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier LLM: %w", err)
	}

	return &Classifier{config: config, llm: llm}, nil
}

// Classify runs the structured classification prompt for one document. A
// malformed response is a classification error for this document only.
func (c *Classifier) Classify(ctx context.Context, docID, text string) (models.StructuredLabel, error) {
	prompt := fmt.Sprintf(classificationTemplate, docID, Truncate(text, c.config.MaxCharsPerDoc))
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.llm.GenerateContent(ctx, content, llms.WithJSONMode())
	if err != nil {
		return models.StructuredLabel{}, fmt.Errorf("classifier call for %s: %w", docID, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return models.StructuredLabel{}, fmt.Errorf("%w: empty response for %s", errs.ErrClassification, docID)
	}

	var label models.StructuredLabel
	raw := resp.Choices[0].Content
	if err := json.Unmarshal([]byte(raw), &label); err != nil {
		return models.StructuredLabel{}, fmt.Errorf("%w: malformed JSON for %s: %v", errs.ErrClassification, docID, err)
	}
	if err := validateLabel(label); err != nil {
		return models.StructuredLabel{}, fmt.Errorf("%w: %v for %s", errs.ErrClassification, err, docID)
	}
	if label.MainPartisanTargets == nil {
		label.MainPartisanTargets = []models.Target{}
	}
	return label, nil
}

func validateLabel(label models.StructuredLabel) error {
	switch label.PoliticalRelevance {
	case models.RelevanceNone, models.RelevanceLow, models.RelevanceHigh:
	default:
		return fmt.Errorf("unexpected political_relevance %q", label.PoliticalRelevance)
	}
	for _, t := range label.MainPartisanTargets {
		switch t.Party {
		case "D", "R", "mixed", "unknown":
		default:
			return fmt.Errorf("unexpected target party %q", t.Party)
		}
	}
	for _, v := range []float64{label.Wrongdoing.WrongdoingByParty.D, label.Wrongdoing.WrongdoingByParty.R} {
		if v < 0 || v > 1 {
			return fmt.Errorf("wrongdoing probability %v out of range", v)
		}
	}
	return nil
}

// Truncate caps text at max characters, marking the cut.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return strings.ToValidUTF8(text[:max], "") + "\n...[truncated]"
}
