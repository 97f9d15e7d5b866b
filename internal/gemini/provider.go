// Package gemini generates images with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/digkill/visionhub/internal/provider"
)

// DisplayName is the model name users pick.
const DisplayName = "Gemini AI"

// Image models only return inline image parts when IMAGE is requested.
var responseModalities = []string{"TEXT", "IMAGE"}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Provider struct {
	model     string
	generator contentGenerator
}

func New(ctx context.Context, apiKey, modelName string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{model: modelName, generator: client.Models}, nil
}

// Generate sends the prompt, plus the reference image when present, and
// returns the first inline image part of the response.
func (p *Provider) Generate(ctx context.Context, req provider.Request) (*provider.Media, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if req.SourceImage != nil && len(req.SourceImage.Data) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: req.SourceImage.MIMEType, Data: req.SourceImage.Data}})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := p.generator.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: responseModalities,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return nil, provider.ErrNoMedia
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			blob := part.InlineData
			if strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
				return &provider.Media{Data: blob.Data, MIMEType: blob.MIMEType}, nil
			}
		}
	}
	return nil, provider.ErrNoMedia
}
