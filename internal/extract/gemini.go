package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
)

// Gemini defaults.
const (
	DefaultGeminiModel         = "gemini-2.0-flash"
	DefaultGeminiFallbackModel = "gemini-1.5-flash"
)

const extractInstruction = "Extract all text from this document. Return only the extracted text, no commentary."

// GeminiConfig configures the inline multimodal service.
type GeminiConfig struct {
	APIKey        string
	Model         string
	FallbackModel string
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiVision sends the document inline in a single multimodal request.
type GeminiVision struct {
	models        contentGenerator
	model         string
	fallbackModel string
	logger        *zap.Logger
}

// NewGeminiVision creates the service B extractor backed by the Gemini API.
func NewGeminiVision(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiVision, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiVision(client.Models, cfg, logger), nil
}

func newGeminiVision(models contentGenerator, cfg GeminiConfig, logger *zap.Logger) *GeminiVision {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	fallback := cfg.FallbackModel
	if fallback == "" {
		fallback = DefaultGeminiFallbackModel
	}
	return &GeminiVision{
		models:        models,
		model:         model,
		fallbackModel: fallback,
		logger:        logging.OrNop(logger).Named("gemini"),
	}
}

// Name implements Extractor.
func (g *GeminiVision) Name() string {
	return "gemini"
}

// Extract implements Extractor. A rejected primary model is retried once
// against the fallback model.
func (g *GeminiVision) Extract(ctx context.Context, doc Document) (Result, error) {
	mime := doc.ContentType
	if mime == "" || !strings.Contains(mime, "/") {
		mime = "application/pdf"
	}
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(doc.Data, mime),
				genai.NewPartFromText(extractInstruction),
			},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil && modelRejected(err) && g.fallbackModel != g.model {
		g.logger.Info("primary model rejected, retrying with fallback",
			zap.String("model", g.model),
			zap.String("fallback_model", g.fallbackModel),
			zap.Error(err))
		resp, err = g.models.GenerateContent(ctx, g.fallbackModel, contents, config)
	}
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}
	return NewResult(firstCandidateText(resp), MethodServiceB), nil
}

func modelRejected(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return false
		}
		apiErr = *apiErrPtr
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(apiErr.Message), "model")
	default:
		return false
	}
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		if text := sb.String(); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}
