/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoComicStudio"
	keyringAPIKey  = "gemini_api_key"
)

// Env vars that supply the credential without touching the keychain.
const (
	EnvAPIKey       = "GCS_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// ErrNoCredential is returned when no generative-AI credential is configured.
var ErrNoCredential = errors.New("no API credential configured")

// CredentialStore holds the single generative-AI credential.
type CredentialStore interface {
	Get() (string, error)
	Set(value string) error
	Delete() error
}

// Keyring stores the credential in the OS keychain via github.com/zalando/go-keyring.
// Tests call keyring.MockInit() to swap the backend for an in-memory one.
type Keyring struct {
	Service string
	User    string
	// IgnoreEnv disables the GCS_API_KEY / GEMINI_API_KEY override.
	IgnoreEnv bool
}

// NewKeyring returns the default keychain-backed credential store.
func NewKeyring() *Keyring {
	return &Keyring{Service: keyringService, User: keyringAPIKey}
}

func (k *Keyring) Get() (string, error) {
	if !k.IgnoreEnv {
		for _, env := range []string{EnvAPIKey, EnvGeminiAPIKey} {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				return v, nil
			}
		}
	}
	v, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(v) == "") {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (k *Keyring) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrNoCredential
	}
	return keyring.Set(k.Service, k.User, value)
}

// Delete removes the stored credential. Deleting a missing one is not an error.
func (k *Keyring) Delete() error {
	err := keyring.Delete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
