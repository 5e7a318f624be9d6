/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// CharacterConfig describes the main character.
type CharacterConfig struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	BodyType    string `json:"bodyType"`
	EyeStyle    string `json:"eyeStyle"`
	HairStyle   string `json:"hairStyle"`
	HairColor   string `json:"hairColor"`
	OutfitStyle string `json:"outfitStyle"`
	OutfitColor string `json:"outfitColor"`
	Accessory   string `json:"accessory"`
}

// DefaultCharacter is the character a fresh session starts with.
func DefaultCharacter() CharacterConfig {
	return CharacterConfig{
		Name:        "Ti",
		Gender:      "boy",
		BodyType:    "average build",
		EyeStyle:    "big round eyes",
		HairStyle:   "spiky messy hair",
		HairColor:   "#000000",
		OutfitStyle: "t-shirt and shorts",
		OutfitColor: "#FFEB3B",
		Accessory:   "none",
	}
}

// Describe renders the character as a sentence for the script prompt.
func (c CharacterConfig) Describe() string {
	return fmt.Sprintf("%s is a %s with %s and %s. Hair: %s, color %s. Wears %s in %s. Accessory: %s.",
		c.Name, c.Gender, c.BodyType, c.EyeStyle, c.HairStyle, c.HairColor, c.OutfitStyle, c.OutfitColor, c.Accessory)
}

// Visual renders the character as a drawing brief for the artwork prompt.
func (c CharacterConfig) Visual() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Main character is a cute anime style kid, %s.\n", c.Gender)
	fmt.Fprintf(&b, "Body: %s.\n", c.BodyType)
	fmt.Fprintf(&b, "Face: %s.\n", c.EyeStyle)
	fmt.Fprintf(&b, "Hair: %s color, %s.\n", c.HairColor, c.HairStyle)
	fmt.Fprintf(&b, "Outfit: %s color, %s.\n", c.OutfitColor, c.OutfitStyle)
	fmt.Fprintf(&b, "Accessory: %s.", c.Accessory)
	return b.String()
}
