package twofa

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	BackupCodeCount  = 8
	BackupCodeLength = 8

	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Largest multiple of len(backupCodeAlphabet) that fits in a byte; bytes at
	// or above it are discarded so every character is equally likely.
	backupCodeByteLimit = 256 - 256%len(backupCodeAlphabet)
)

// ConsumeResult is the outcome of checking a code against a stored list.
// UpdatedCodes is nil unless IsValid.
type ConsumeResult struct {
	IsValid      bool     `json:"is_valid"`
	UpdatedCodes []string `json:"updated_codes"`
}

// GenerateBackupCodes returns BackupCodeCount distinct codes from crypto/rand.
func GenerateBackupCodes() ([]string, error) {
	return generateBackupCodes(rand.Reader)
}

func generateBackupCodes(r io.Reader) ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	seen := make(map[string]struct{}, BackupCodeCount)
	for len(codes) < BackupCodeCount {
		code, err := randomBackupCode(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func randomBackupCode(r io.Reader) (string, error) {
	var sb strings.Builder
	sb.Grow(BackupCodeLength)
	buf := make([]byte, BackupCodeLength*2)
	for sb.Len() < BackupCodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= backupCodeByteLimit {
				continue
			}
			sb.WriteByte(backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
			if sb.Len() == BackupCodeLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// NormalizeBackupCode uppercases a submitted code for comparison.
func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isBackupCodeShape(code string) bool {
	if len(code) != BackupCodeLength {
		return false
	}
	return strings.Trim(code, backupCodeAlphabet) == ""
}

// SerializeBackupCodes renders codes in the stored format, a JSON array of
// uppercase strings.
func SerializeBackupCodes(codes []string) (string, error) {
	normalized := make([]string, len(codes))
	for i, c := range codes {
		normalized[i] = NormalizeBackupCode(c)
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal backup codes: %w", err)
	}
	return string(data), nil
}

// ParseBackupCodes decodes a stored list. ok is false for nil or unparseable input.
func ParseBackupCodes(stored *string) (codes []string, ok bool) {
	if stored == nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(*stored), &codes); err != nil {
		return nil, false
	}
	return codes, true
}

// VerifyAndConsumeBackupCode checks code against the stored list and, on a
// match, returns the list without that one entry, order preserved. It never
// touches storage: two callers holding the same list will both succeed with
// the same code. Use TwoFactorManager.ConsumeBackupCode for single use.
func VerifyAndConsumeBackupCode(stored *string, code string) ConsumeResult {
	codes, ok := ParseBackupCodes(stored)
	if !ok {
		return ConsumeResult{}
	}
	submitted := NormalizeBackupCode(code)
	if submitted == "" {
		return ConsumeResult{}
	}
	for i, c := range codes {
		if c != submitted {
			continue
		}
		updated := make([]string, 0, len(codes)-1)
		updated = append(updated, codes[:i]...)
		updated = append(updated, codes[i+1:]...)
		return ConsumeResult{IsValid: true, UpdatedCodes: updated}
	}
	return ConsumeResult{}
}

// GetBackupCodesCount returns how many codes remain, 0 for nil or unparseable input.
func GetBackupCodesCount(stored *string) int {
	codes, _ := ParseBackupCodes(stored)
	return len(codes)
}
