package kie

import (
	"context"
	"strings"

	"github.com/digkill/visionhub/internal/provider"
)

// Display names users pick in the generation form.
const (
	ModelFlux2      = "Flux 2"
	ModelNanoBanana = "Nano Banana Pro"
)

type modelFunc func(ctx context.Context, req provider.Request) (*provider.Media, error)

func (f modelFunc) Generate(ctx context.Context, req provider.Request) (*provider.Media, error) {
	return f(ctx, req)
}

// Flux2 switches to image-to-image when a reference image URL is supplied.
func (c *Client) Flux2() provider.Provider {
	return modelFunc(func(ctx context.Context, req provider.Request) (*provider.Media, error) {
		t := task{
			Model: "flux-2/pro-text-to-image",
			Input: map[string]any{
				"prompt":       req.Prompt,
				"aspect_ratio": req.AspectRatio,
				"resolution":   "1K",
			},
		}
		if req.SourceURL != "" {
			t.Model = "flux-2/pro-image-to-image"
			t.Input["input_urls"] = []string{req.SourceURL}
		}
		return c.run(ctx, t)
	})
}

func (c *Client) NanoBanana() provider.Provider {
	return modelFunc(func(ctx context.Context, req provider.Request) (*provider.Media, error) {
		t := task{
			Model: "nano-banana-pro",
			Input: map[string]any{
				"prompt":        req.Prompt,
				"aspect_ratio":  req.AspectRatio,
				"resolution":    "1K",
				"output_format": "png",
			},
		}
		if req.SourceURL != "" {
			t.Input["image_input"] = []string{req.SourceURL}
		}
		return c.run(ctx, t)
	})
}

// Video runs the given KIE video model. The result is always reported as MP4.
func (c *Client) Video(model string) provider.Provider {
	return modelFunc(func(ctx context.Context, req provider.Request) (*provider.Media, error) {
		t := task{
			Model: model,
			Input: map[string]any{
				"prompt":       req.Prompt,
				"aspect_ratio": req.AspectRatio,
			},
		}
		if req.SourceURL != "" {
			t.Input["image_url"] = req.SourceURL
		}
		media, err := c.run(ctx, t)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(media.MIMEType, "video/") {
			media.MIMEType = "video/mp4"
		}
		return media, nil
	})
}
