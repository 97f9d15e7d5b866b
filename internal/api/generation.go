package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/provider"
	"github.com/digkill/visionhub/internal/service"
)

// generationRequest is shared by both endpoints. SourceImage is either a data
// URL or bare base64, in which case SourceImageType names the MIME type.
type generationRequest struct {
	Prompt          string   `json:"prompt"`
	AspectRatio     string   `json:"aspectRatio"`
	Models          []string `json:"models"`
	Model           string   `json:"model"`
	PromptID        string   `json:"promptId"`
	SourceImage     string   `json:"sourceImage"`
	SourceImageType string   `json:"sourceImageType"`
}

func (s *Server) handleGenerateImages(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	source, err := decodeSourceImage(req.SourceImage, req.SourceImageType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items, err := s.deps.Generator.GenerateImages(r.Context(), service.ImageRequest{
		UserID:      uidFrom(r.Context()),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Models:      req.Models,
		PromptID:    req.PromptID,
		SourceImage: source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string][]models.MediaItem{"items": items})
}

func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	source, err := decodeSourceImage(req.SourceImage, req.SourceImageType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.deps.Generator.GenerateVideo(r.Context(), service.VideoRequest{
		UserID:      uidFrom(r.Context()),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Model:       req.Model,
		PromptID:    req.PromptID,
		SourceImage: source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, item)
}

func decodeSourceImage(raw, mimeType string) (*provider.Media, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, apperror.ValidationFailed("sourceImage", "source image must be a base64 data URL")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		raw = payload
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, apperror.ValidationFailed("sourceImage", "source must be an image")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(data) == 0 {
		return nil, apperror.ValidationFailed("sourceImage", "source image is not valid base64")
	}
	return &provider.Media{Data: data, MIMEType: mimeType}, nil
}
