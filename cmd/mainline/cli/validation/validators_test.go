package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionID(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSessionID("a1b2c3d4-e5f6"))
	assert.NoError(t, ValidateSessionID("session_01"))

	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("../escape"))
	assert.Error(t, ValidateSessionID("id with spaces"))
	assert.Error(t, ValidateSessionID("id/slash"))
}

func TestValidateBranchName(t *testing.T) {
	t.Parallel()

	valid := []string{
		"main",
		"feature/login",
		"feature/login-v2",
		"hotfix/crash.fix",
		"a/b/c",
	}
	for _, name := range valid {
		assert.NoError(t, ValidateBranchName(name), name)
	}

	invalid := []string{
		"",
		"/leading",
		"trailing/",
		"has space",
		"dot..dot",
		"feature/../../etc",
		"tilde~1",
		"star*",
		"question?",
		"col:on",
		"back\\slash",
		"-leading-hyphen",
		"feature/.hidden",
		"refs.lock",
		"feature/x.lock",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateBranchName(name), name)
	}
}
