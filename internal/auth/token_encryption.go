// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// tokenKeyContext is the HKDF info string for integration token keys.
const tokenKeyContext = "lucyn-integration-tokens-v1"

// TokenEncryptor encrypts provider OAuth tokens at rest with AES-256-GCM.
//
// The AES key is derived from the configured master key with HKDF-SHA256,
// so the master key can be any length of at least 16 bytes. Ciphertext is
// base64(nonce || sealed), a fresh random nonce per call.
//
// A nil *TokenEncryptor passes values through unchanged; this is the
// development mode when no ENCRYPTION_KEY is configured.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor creates an encryptor from a base64 master key.
// It returns (nil, nil) when masterKey is empty.
func NewTokenEncryptor(masterKey string) (*TokenEncryptor, error) {
	if masterKey == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(raw) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, raw, nil, []byte(tokenKeyContext)), key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &TokenEncryptor{aead: aead}, nil
}

// IsEnabled reports whether values are actually encrypted.
func (e *TokenEncryptor) IsEnabled() bool {
	return e != nil && e.aead != nil
}

// Encrypt seals plaintext. Empty input yields empty output.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if !e.IsEnabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if !e.IsEnabled() || ciphertext == "" {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+e.aead.Overhead()+1 {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// IntegrationTokens is the credential pair returned by a provider.
type IntegrationTokens struct {
	AccessToken  string
	RefreshToken string
}

// EncryptTokens encrypts both tokens of t.
func (e *TokenEncryptor) EncryptTokens(t IntegrationTokens) (IntegrationTokens, error) {
	access, err := e.Encrypt(t.AccessToken)
	if err != nil {
		return IntegrationTokens{}, fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := e.Encrypt(t.RefreshToken)
	if err != nil {
		return IntegrationTokens{}, fmt.Errorf("encrypt refresh token: %w", err)
	}
	return IntegrationTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// DecryptTokens reverses EncryptTokens.
func (e *TokenEncryptor) DecryptTokens(t IntegrationTokens) (IntegrationTokens, error) {
	access, err := e.Decrypt(t.AccessToken)
	if err != nil {
		return IntegrationTokens{}, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := e.Decrypt(t.RefreshToken)
	if err != nil {
		return IntegrationTokens{}, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return IntegrationTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// GenerateEncryptionKey returns a random 32-byte key, base64 encoded, for
// use as ENCRYPTION_KEY.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
