/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ai

import (
	"fmt"
	"strings"
)

const artStyle = "Fujiko F. Fujio art style, Doraemon anime style, 1990s anime screenshot, cel shaded."

// BuildScriptPrompt renders the instruction for the script model.
func BuildScriptPrompt(req ScriptRequest) string {
	c := req.Character
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-panel comic script in the style of Doraemon.\n\n", req.Length)
	fmt.Fprintf(&b, "Main character: %s\n", c.Describe())
	if len(req.SideCharacters) == 0 {
		b.WriteString("There are no side characters.\n")
	} else {
		names := make([]string, 0, len(req.SideCharacters))
		for _, sc := range req.SideCharacters {
			names = append(names, fmt.Sprintf("%s (%s)", sc.Name, sc.Description))
		}
		fmt.Fprintf(&b, "Side characters that may appear: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "\nPlot: %s\n\n", strings.TrimSpace(req.Topic))
	b.WriteString("Answer with a JSON array, one object per panel:\n")
	b.WriteString("- panelNumber: 1-based panel number\n")
	fmt.Fprintf(&b, "- description: detailed English picture description; keep the character's %s hair in %s and %s in %s\n",
		c.HairStyle, c.HairColor, c.OutfitStyle, c.OutfitColor)
	b.WriteString("- dialogue_character: name of the speaker\n")
	b.WriteString("- dialogue_text: one short line of dialogue\n")
	fmt.Fprintf(&b, "- visual_prompt: English drawing prompt, 90s anime, flat color, thick lines; mind the %s and %s\n",
		c.BodyType, c.EyeStyle)
	b.WriteString("\nKeep it funny, cute and suitable for children. Keep dialogue short. ")
	b.WriteString("When a side character appears, name them in visual_prompt.\n")
	return b.String()
}

// BuildArtworkPrompt renders the drawing instruction for one panel. Only
// the characters marked present in the panel are described.
func BuildArtworkPrompt(req ArtworkRequest, aspect string) string {
	p := req.Panel
	var present []string
	if p.ShowMainCharacter {
		present = append(present, fmt.Sprintf("MAIN CHARACTER (%s): %s", req.Character.Name, req.Character.Visual()))
	}
	for _, id := range p.CharacterIDs {
		for _, sc := range req.Roster {
			if sc.ID == id {
				present = append(present, fmt.Sprintf("SIDE CHARACTER (%s): %s", sc.Name, sc.Description))
				break
			}
		}
	}
	chars := "NO CHARACTERS IN SCENE, BACKGROUND ONLY."
	if len(present) > 0 {
		chars = "CHARACTERS PRESENT IN SCENE:\n" + strings.Join(present, "\n")
	}
	if aspect == "" {
		aspect = "4:3"
	}
	var b strings.Builder
	b.WriteString(artStyle)
	b.WriteString("\n")
	b.WriteString(chars)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Scene Action & Setting: %s.\n", strings.TrimSpace(p.VisualPrompt))
	fmt.Fprintf(&b, "High quality, clean lines, flat colors, bright atmosphere, no text bubbles in image. Aspect ratio %s.", aspect)
	return b.String()
}
