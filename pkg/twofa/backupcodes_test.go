package twofa

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backupCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func storedCodes(t *testing.T, codes ...string) *string {
	t.Helper()
	s, err := SerializeBackupCodes(codes)
	require.NoError(t, err)
	return &s
}

func TestGenerateBackupCodes_Shape(t *testing.T) {
	for i := 0; i < 50; i++ {
		codes, err := GenerateBackupCodes()
		require.NoError(t, err)
		require.Len(t, codes, BackupCodeCount)

		seen := map[string]bool{}
		for _, c := range codes {
			assert.Regexp(t, backupCodePattern, c)
			assert.False(t, seen[c], "duplicate code %s", c)
			seen[c] = true
		}
	}
}

// block returns one read's worth of bytes that all map to alphabet[i].
func block(i byte) []byte {
	return bytes.Repeat([]byte{i}, BackupCodeLength*2)
}

func TestGenerateBackupCodes_Deterministic(t *testing.T) {
	t.Run("duplicates are redrawn", func(t *testing.T) {
		var src []byte
		src = append(src, block(0)...)
		src = append(src, block(0)...)
		for i := byte(1); i < BackupCodeCount; i++ {
			src = append(src, block(i)...)
		}

		codes, err := generateBackupCodes(bytes.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"AAAAAAAA", "BBBBBBBB", "CCCCCCCC", "DDDDDDDD",
			"EEEEEEEE", "FFFFFFFF", "GGGGGGGG", "HHHHHHHH",
		}, codes)
	})

	t.Run("bytes past the last full alphabet cycle are rejected", func(t *testing.T) {
		src := []byte{255, 252, 0, 35, 36, 251, 1, 2, 3, 4, 0, 0, 0, 0, 0, 0}
		code, err := randomBackupCode(bytes.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, "A9A9BCDE", code)
	})

	t.Run("short random source", func(t *testing.T) {
		_, err := generateBackupCodes(bytes.NewReader([]byte{1, 2, 3}))
		assert.Error(t, err)
	})
}

func TestSerializeBackupCodes(t *testing.T) {
	s, err := SerializeBackupCodes([]string{"abcd1234", "ZZZZ9999"})
	require.NoError(t, err)
	assert.Equal(t, `["ABCD1234","ZZZZ9999"]`, s)
}

func TestVerifyAndConsumeBackupCode(t *testing.T) {
	list := storedCodes(t, "AAAA1111", "BBBB2222", "CCCC3333")

	t.Run("match removes only that code and keeps order", func(t *testing.T) {
		res := VerifyAndConsumeBackupCode(list, "BBBB2222")
		assert.True(t, res.IsValid)
		assert.Equal(t, []string{"AAAA1111", "CCCC3333"}, res.UpdatedCodes)
	})

	t.Run("last code leaves an empty list", func(t *testing.T) {
		res := VerifyAndConsumeBackupCode(storedCodes(t, "AAAA1111"), "AAAA1111")
		assert.True(t, res.IsValid)
		assert.NotNil(t, res.UpdatedCodes)
		assert.Empty(t, res.UpdatedCodes)
	})

	t.Run("case insensitive", func(t *testing.T) {
		res := VerifyAndConsumeBackupCode(list, "cccc3333")
		assert.True(t, res.IsValid)
		assert.Equal(t, []string{"AAAA1111", "BBBB2222"}, res.UpdatedCodes)
	})

	t.Run("no match returns no list", func(t *testing.T) {
		res := VerifyAndConsumeBackupCode(list, "DDDD4444")
		assert.False(t, res.IsValid)
		assert.Nil(t, res.UpdatedCodes)
	})

	t.Run("input list is not modified", func(t *testing.T) {
		before := *list
		VerifyAndConsumeBackupCode(list, "AAAA1111")
		assert.Equal(t, before, *list)
	})

	t.Run("same list twice succeeds twice", func(t *testing.T) {
		// Nothing is persisted here, so a second caller holding the original
		// list also succeeds. ConsumeBackupCode is the single-use path.
		first := VerifyAndConsumeBackupCode(list, "AAAA1111")
		second := VerifyAndConsumeBackupCode(list, "AAAA1111")
		assert.True(t, first.IsValid)
		assert.True(t, second.IsValid)
		assert.Len(t, first.UpdatedCodes, 2)
		assert.NotContains(t, first.UpdatedCodes, "AAAA1111")
	})

	t.Run("fail closed", func(t *testing.T) {
		notJSON := "not json"
		wrongShape := `{"codes":["AAAA1111"]}`
		null := "null"

		assert.Equal(t, ConsumeResult{}, VerifyAndConsumeBackupCode(nil, "ANYCODE1"))
		assert.Equal(t, ConsumeResult{}, VerifyAndConsumeBackupCode(&notJSON, "ANYCODE1"))
		assert.Equal(t, ConsumeResult{}, VerifyAndConsumeBackupCode(&wrongShape, "AAAA1111"))
		assert.Equal(t, ConsumeResult{}, VerifyAndConsumeBackupCode(&null, "AAAA1111"))
		assert.Equal(t, ConsumeResult{}, VerifyAndConsumeBackupCode(list, ""))
	})
}

func TestConsumeResult_JSON(t *testing.T) {
	last := VerifyAndConsumeBackupCode(storedCodes(t, "AAAA1111"), "aaaa1111")
	require.True(t, last.IsValid)

	data, err := json.Marshal(last)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":true,"updated_codes":[]}`, string(data))

	data, err = json.Marshal(VerifyAndConsumeBackupCode(storedCodes(t, "AAAA1111"), "BBBB2222"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_valid":false,"updated_codes":null}`, string(data))
}

func TestGetBackupCodesCount(t *testing.T) {
	notJSON := "not json"
	empty := "[]"

	assert.Equal(t, 0, GetBackupCodesCount(nil))
	assert.Equal(t, 0, GetBackupCodesCount(&notJSON))
	assert.Equal(t, 0, GetBackupCodesCount(&empty))
	assert.Equal(t, 3, GetBackupCodesCount(storedCodes(t, "AAAA1111", "BBBB2222", "CCCC3333")))
}

func TestIsBackupCodeShape(t *testing.T) {
	assert.True(t, isBackupCodeShape("AB12CD34"))
	assert.False(t, isBackupCodeShape("ab12cd34"))
	assert.False(t, isBackupCodeShape("AB12CD3"))
	assert.False(t, isBackupCodeShape("AB12-D34"))
	assert.False(t, isBackupCodeShape(strings.Repeat("A", 9)))
}
