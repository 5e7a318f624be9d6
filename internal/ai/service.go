/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ai talks to the generative model that writes comic scripts and
// draws panel artwork. The session depends on the two service interfaces
// only; Gemini is the production implementation.
package ai

import (
	"context"
	"errors"

	"gocomicstudio/internal/domain"
)

var (
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrNoImage       = errors.New("model response contains no image")
)

// ScriptRequest carries everything the script prompt is built from.
type ScriptRequest struct {
	Character      domain.CharacterConfig
	SideCharacters []domain.SideCharacter
	Topic          string
	Length         int
}

// ArtworkRequest describes one panel to draw. Roster resolves the panel's
// side character ids to names and descriptions.
type ArtworkRequest struct {
	Character domain.CharacterConfig
	Roster    []domain.SideCharacter
	Panel     domain.Panel
}

// ScriptService produces the panel records of a story.
type ScriptService interface {
	GenerateScript(ctx context.Context, apiKey string, req ScriptRequest) ([]domain.ScriptRecord, error)
}

// ArtworkService produces an image reference (a data URI) for one panel.
type ArtworkService interface {
	GenerateArtwork(ctx context.Context, apiKey string, req ArtworkRequest) (string, error)
}
