/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// Preset is a suggested side character.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Glyph is a palette entry for emoji stickers.
type Glyph struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var presets = []Preset{
	{Name: "Robot Cat", Description: "Round blue robot cat with a golden bell and a magic pocket."},
	{Name: "Glasses Boy", Description: "Boy with round glasses, yellow t-shirt, blue shorts, clumsy."},
	{Name: "Mom", Description: "Woman with round glasses and an apron, curly hair, strict."},
	{Name: "Dad", Description: "Man in a suit coming home from work, gentle."},
	{Name: "Big Kid", Description: "Chubby kid in an orange striped shirt, loud, loves singing."},
	{Name: "Show-off", Description: "Skinny kid with slicked hair and a pointy grin, likes to brag."},
	{Name: "Sweet Girl", Description: "Cute girl with two pigtails and a pink dress."},
	{Name: "Little Sister Bot", Description: "Small yellow robot with a red bow and tulip tail."},
	{Name: "Teacher", Description: "Stern teacher in a green suit who scolds a lot."},
}

var gadgets = []Glyph{
	{Name: "Bamboo copter", Icon: "🚁"},
	{Name: "Anywhere door", Icon: "🚪"},
	{Name: "Shrink light", Icon: "🔦"},
	{Name: "Memory bread", Icon: "🍞"},
	{Name: "Time machine", Icon: "🕰️"},
	{Name: "Air cannon", Icon: "💣"},
	{Name: "Magic pocket", Icon: "👜"},
	{Name: "Donut", Icon: "🍩"},
}

var effects = []Glyph{
	{Name: "Angry", Icon: "💢"},
	{Name: "Sweat", Icon: "💧"},
	{Name: "Sparkle", Icon: "✨"},
	{Name: "Surprise", Icon: "❗"},
	{Name: "Question", Icon: "❓"},
	{Name: "Sleep", Icon: "💤"},
	{Name: "Love", Icon: "😍"},
	{Name: "Shock", Icon: "😱"},
	{Name: "Music", Icon: "🎵"},
	{Name: "Dizzy", Icon: "💫"},
	{Name: "Boom", Icon: "💥"},
}

func Presets() []Preset { return append([]Preset(nil), presets...) }
func Gadgets() []Glyph { return append([]Glyph(nil), gadgets...) }
func Effects() []Glyph { return append([]Glyph(nil), effects...) }

// SuggestPreset returns the first preset whose name contains the typed name
// or is contained in it, case-insensitively.
func SuggestPreset(typed string) (Preset, bool) {
	t := strings.ToLower(strings.TrimSpace(typed))
	if t == "" {
		return Preset{}, false
	}
	for _, p := range presets {
		n := strings.ToLower(p.Name)
		if strings.Contains(n, t) || strings.Contains(t, n) {
			return p, true
		}
	}
	return Preset{}, false
}

// GlyphName returns the palette name of an emoji icon.
func GlyphName(icon string) (string, bool) {
	for _, g := range gadgets {
		if g.Icon == icon {
			return g.Name, true
		}
	}
	for _, g := range effects {
		if g.Icon == icon {
			return g.Name, true
		}
	}
	return "", false
}
