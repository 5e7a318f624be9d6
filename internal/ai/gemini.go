/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ai

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	applog "gocomicstudio/internal/log"
)

const (
	clientTTL     = 30 * time.Minute
	clientCleanup = time.Hour
)

type generateFunc func(ctx context.Context, apiKey, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Gemini implements ScriptService and ArtworkService on the Gemini API.
// Clients are created lazily per API key and cached; artwork calls pass
// through a rate limiter shared by all panels.
type Gemini struct {
	ScriptModel string
	ImageModel  string
	AspectRatio string
	ImageSize   string
	// Timeout bounds one call; 0 leaves the caller's context alone.
	Timeout time.Duration

	limiter  *rate.Limiter
	clients  *cache.Cache
	generate generateFunc
}

// NewGemini builds the service from the ai config section.
func NewGemini(cfg config.AIConfig) *Gemini {
	g := &Gemini{
		ScriptModel: cfg.ScriptModel,
		ImageModel:  cfg.ImageModel,
		AspectRatio: cfg.AspectRatio,
		ImageSize:   cfg.ImageSize,
		Timeout:     cfg.Timeout(),
		limiter:     NewLimiter(cfg.ImagesPerMinute, cfg.ImageBurst),
		clients:     cache.New(clientTTL, clientCleanup),
	}
	g.generate = g.callModel
	return g
}

// NewLimiter spaces perMinute calls evenly; perMinute <= 0 means unlimited.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func (g *Gemini) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	sum := sha256.Sum256([]byte(apiKey))
	key := hex.EncodeToString(sum[:])
	if c, ok := g.clients.Get(key); ok {
		return c.(*genai.Client), nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.clients.Set(key, c, cache.DefaultExpiration)
	return c, nil
}

func (g *Gemini) callModel(ctx context.Context, apiKey, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return c.Models.GenerateContent(ctx, model, contents, cfg)
}

func (g *Gemini) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout > 0 {
		return context.WithTimeout(ctx, g.Timeout)
	}
	return context.WithCancel(ctx)
}

func scriptSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"panelNumber":        {Type: genai.TypeInteger},
				"description":        str,
				"dialogue_character": str,
				"dialogue_text":      str,
				"visual_prompt":      str,
			},
			Required: []string{"panelNumber", "description", "dialogue_text", "visual_prompt"},
		},
	}
}

// GenerateScript asks the script model for a JSON panel list.
func (g *Gemini) GenerateScript(ctx context.Context, apiKey string, req ScriptRequest) ([]domain.ScriptRecord, error) {
	l := applog.WithOperation(applog.WithComponent("ai"), "script")
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	resp, err := g.generate(ctx, apiKey, g.ScriptModel, genai.Text(BuildScriptPrompt(req)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   scriptSchema(),
	})
	if err != nil {
		l.Warn("script generation failed", slog.String("model", g.ScriptModel), slog.Any("err", err))
		return nil, fmt.Errorf("generate script: %w", err)
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	recs, err := ParseScript(resp.Text())
	if err != nil {
		return nil, err
	}
	l.Info("script generated", slog.Int("panels", len(recs)), slog.Int64("ms", time.Since(start).Milliseconds()))
	return recs, nil
}

// ParseScript decodes the model's JSON answer. Markdown code fences
// around the JSON are tolerated.
func ParseScript(text string) ([]domain.ScriptRecord, error) {
	text = stripFences(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	var recs []domain.ScriptRecord
	if err := json.Unmarshal([]byte(text), &recs); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return recs, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// GenerateArtwork draws one panel and returns the first inline image as
// a data URI.
func (g *Gemini) GenerateArtwork(ctx context.Context, apiKey string, req ArtworkRequest) (string, error) {
	l := applog.WithOperation(applog.WithComponent("ai"), "artwork")
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	resp, err := g.generate(ctx, apiKey, g.ImageModel, genai.Text(BuildArtworkPrompt(req, g.AspectRatio)), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: g.AspectRatio, ImageSize: g.ImageSize},
	})
	if err != nil {
		l.Warn("artwork generation failed", slog.Int("panel", req.Panel.Sequence), slog.Any("err", err))
		return "", fmt.Errorf("generate artwork for panel %d: %w", req.Panel.Sequence, err)
	}
	uri, err := firstInlineImage(resp)
	if err != nil {
		return "", fmt.Errorf("panel %d: %w", req.Panel.Sequence, err)
	}
	l.Debug("artwork generated", slog.Int("panel", req.Panel.Sequence), slog.Int("bytes", len(uri)))
	return uri, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
	}
	return "", ErrNoImage
}
