package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/digkill/visionhub/internal/provider"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func imagePart(mime, data string) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: []byte(data)}}
}

func TestGenerate_ReturnsFirstImageBlob(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, "image-model", mock.Anything, mock.Anything).
		Return(response(&genai.Part{Text: "here you go"}, imagePart("image/png", "img")), nil)

	p := &Provider{model: "image-model", generator: gen}
	media, err := p.Generate(context.Background(), provider.Request{Prompt: "a fox (aspect ratio 1:1)"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", media.MIMEType)
	assert.Equal(t, []byte("img"), media.Data)
	gen.AssertExpectations(t)
}

func TestGenerate_RequestsImageModality(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, "image-model", mock.Anything, mock.Anything).
		Return(response(imagePart("image/png", "img")), nil)

	p := &Provider{model: "image-model", generator: gen}
	_, err := p.Generate(context.Background(), provider.Request{Prompt: "a red car"})
	require.NoError(t, err)

	config := gen.Calls[0].Arguments.Get(3).(*genai.GenerateContentConfig)
	require.NotNil(t, config)
	assert.Contains(t, config.ResponseModalities, "IMAGE")
	assert.Contains(t, config.ResponseModalities, "TEXT")

	contents := gen.Calls[0].Arguments.Get(2).([]*genai.Content)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "a red car", contents[0].Parts[0].Text)
}

func TestGenerate_AttachesSourceImage(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, "image-model", mock.Anything, mock.Anything).
		Return(response(imagePart("image/png", "out")), nil)

	p := &Provider{model: "image-model", generator: gen}
	src := &provider.Media{MIMEType: "image/jpeg", Data: []byte("src")}
	_, err := p.Generate(context.Background(), provider.Request{Prompt: "p", SourceImage: src})
	require.NoError(t, err)

	contents := gen.Calls[0].Arguments.Get(2).([]*genai.Content)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "p", contents[0].Parts[0].Text)
	assert.Equal(t, &genai.Blob{MIMEType: "image/jpeg", Data: []byte("src")}, contents[0].Parts[1].InlineData)
}

func TestGenerate_TextOnlyResponseHasNoMedia(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(response(&genai.Part{Text: "sorry"}), nil)

	p := &Provider{model: "image-model", generator: gen}
	_, err := p.Generate(context.Background(), provider.Request{Prompt: "p"})
	assert.ErrorIs(t, err, provider.ErrNoMedia)
}

func TestGenerate_WrapsClientError(t *testing.T) {
	gen := new(mockGenerator)
	boom := errors.New("quota")
	gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	p := &Provider{model: "image-model", generator: gen}
	_, err := p.Generate(context.Background(), provider.Request{Prompt: "p"})
	assert.ErrorIs(t, err, boom)
}
