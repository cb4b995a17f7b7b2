package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

func TestValidateInput_RejectsDangerousSubstring(t *testing.T) {
	err := ValidateInput(map[string]interface{}{"payload": "<script>alert(1)</script>"})
	require.Error(t, err)
	assert.Equal(t, eventmodel.KindValidation, err.(*eventmodel.Error).Kind)
	assert.Equal(t, "<script", err.(*eventmodel.Error).Rule)
}

func TestValidateInput_RejectsDangerousKey(t *testing.T) {
	err := ValidateInput(map[string]interface{}{"../etc": "x"})
	require.Error(t, err)
	assert.Equal(t, "../", err.(*eventmodel.Error).Rule)
}

func TestValidateInput_AcceptsOrdinaryPayload(t *testing.T) {
	err := ValidateInput(map[string]interface{}{"amount": 10.5, "symbol": "NEO"})
	assert.NoError(t, err)
}

func TestValidateInput_SizeBoundary(t *testing.T) {
	// {"x":"..."} wraps the string value in 8 bytes of JSON framing, so a
	// 999,992-byte string lands exactly at the 1,000,000-byte limit.
	pad := strings.Repeat("a", 999992)
	ok := map[string]interface{}{"x": pad}
	err := ValidateInput(ok)
	assert.NoError(t, err)

	tooBig := map[string]interface{}{"x": pad + "a"}
	err = ValidateInput(tooBig)
	require.Error(t, err)
	assert.Equal(t, "input-too-large", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_RequiresVersion(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{Description: "d"}
	err := ValidateMetadata(meta)
	require.Error(t, err)
	assert.Equal(t, "version-required", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_RejectsBadVersionFormat(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{Version: "v1", Description: "d"}
	err := ValidateMetadata(meta)
	require.Error(t, err)
	assert.Equal(t, "version-format", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_RejectsTooManyTags(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{
		Version:     "1.0.0",
		Description: "d",
		Tags:        []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"},
	}
	err := ValidateMetadata(meta)
	require.Error(t, err)
	assert.Equal(t, "too-many-tags", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_RejectsInvalidRuntime(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{Version: "1.0.0", Description: "d", Runtime: "python"}
	err := ValidateMetadata(meta)
	require.Error(t, err)
	assert.Equal(t, "invalid-runtime", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_RejectsInvalidPermission(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{
		Version: "1.0.0", Description: "d",
		Permissions: map[eventmodel.Permission]bool{"root": true},
	}
	err := ValidateMetadata(meta)
	require.Error(t, err)
	assert.Equal(t, "invalid-permission", err.(*eventmodel.Error).Rule)
}

func TestValidateMetadata_AcceptsWellFormed(t *testing.T) {
	meta := &eventmodel.FunctionMetadata{
		Version:     "1.2.3",
		Description: "does a thing",
		Author:      "alice",
		Tags:        []string{"defi", "neo"},
		Runtime:     eventmodel.RuntimeJavaScript,
		Permissions: map[eventmodel.Permission]bool{eventmodel.PermissionNet: true},
	}
	assert.NoError(t, ValidateMetadata(meta))
}

func TestValidateName_LengthBoundary(t *testing.T) {
	assert.Error(t, ValidateName("ab"))
	assert.NoError(t, ValidateName("abc"))
	assert.NoError(t, ValidateName(strings.Repeat("a", 50)))
	assert.Error(t, ValidateName(strings.Repeat("a", 51)))
}

func TestValidateCode_RejectsEmpty(t *testing.T) {
	err := ValidateCode("")
	require.Error(t, err)
	assert.Equal(t, "code-empty", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_SizeBoundary(t *testing.T) {
	body := strings.Repeat("a", 999_970)
	ok := "export default function() { " + body + " }"
	require.Len(t, ok, 1_000_000)
	assert.NoError(t, ValidateCode(ok))

	tooBig := ok + "a"
	require.Len(t, tooBig, 1_000_001)
	err := ValidateCode(tooBig)
	require.Error(t, err)
	assert.Equal(t, "code-too-large", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_RequiresExportMarker(t *testing.T) {
	err := ValidateCode("function handler() { return 1; }")
	require.Error(t, err)
	assert.Equal(t, "missing-export", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_RejectsEvalScenario(t *testing.T) {
	// Code calling eval() must be rejected at validation,
	// before the sandbox ever runs it.
	code := "export default function(input) { eval(input.expr); return 1; }"
	err := ValidateCode(code)
	require.Error(t, err)
	assert.Equal(t, "eval(", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_RejectsInfiniteLoop(t *testing.T) {
	code := "export default function() { while(true) { } }"
	err := ValidateCode(code)
	require.Error(t, err)
	assert.Equal(t, "while(true)", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_RejectsResourceExhaustion(t *testing.T) {
	code := "export const handler = () => { new Array(1000000000); }"
	err := ValidateCode(code)
	require.Error(t, err)
	assert.Equal(t, "new Array(1000000000)", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_RejectsRecursion(t *testing.T) {
	code := "export default function() { function x() { x(); } }"
	err := ValidateCode(code)
	require.Error(t, err)
	assert.Equal(t, "function x() { x(); }", err.(*eventmodel.Error).Rule)
}

func TestValidateCode_AcceptsCleanFunction(t *testing.T) {
	code := `export default function(input) { return { sum: input.a + input.b }; }`
	assert.NoError(t, ValidateCode(code))
}
