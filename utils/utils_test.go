package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.0, Round2(9.999))
	assert.Equal(t, 9.99, Round2(9.994))
	assert.Equal(t, -1.49, Round2(-1.494))
	assert.Equal(t, 0.0, Round2(0))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1234.50 EUR", FormatAmount(1234.5, "EUR"))
	assert.Equal(t, "10.00", FormatAmount(9.999, ""))
}

func TestEnvInt(t *testing.T) {
	t.Setenv("UTILS_TEST_INT", "42")
	assert.Equal(t, 42, EnvInt("UTILS_TEST_INT", 7))
	assert.Equal(t, 7, EnvInt("UTILS_TEST_INT_MISSING", 7))

	t.Setenv("UTILS_TEST_INT", "not-a-number")
	assert.Equal(t, 7, EnvInt("UTILS_TEST_INT", 7))
}

func TestEnvStr(t *testing.T) {
	t.Setenv("UTILS_TEST_STR", "value")
	assert.Equal(t, "value", EnvStr("UTILS_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", EnvStr("UTILS_TEST_STR_MISSING", "fallback"))
}
