package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorKinds(t *testing.T) {
	cases := []struct {
		code string
		kind Kind
	}{
		{CodeUnsupportedType, KindValidation},
		{CodeTooManyPages, KindValidation},
		{CodeRateLimited, KindAdmission},
		{CodeOCRFailed, KindAcquisition},
		{CodeEngineNotConfigured, KindExtraction},
		{CodePersistenceFailed, KindPersistence},
		{"SOMETHING_NEW", KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, NewAppError(tc.code, "x", nil).Kind(), tc.code)
	}
}

func TestAsAppError(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	wrapped := fmt.Errorf("lookup: %w", ErrNotFound)
	assert.Equal(t, CodeNotFound, AsAppError(wrapped).Code)

	orig := NewAdmissionError(CodeDailyQuota, "daily", time.Hour)
	got := AsAppError(fmt.Errorf("admit: %w", orig))
	assert.Same(t, orig, got)
	assert.Equal(t, time.Hour, got.RetryAfter)
	assert.True(t, errors.Is(got, ErrQuota))

	assert.Equal(t, CodeInternal, AsAppError(errors.New("boom")).Code)
}

func TestResolveLocale(t *testing.T) {
	assert.Equal(t, LocaleEN, ResolveLocale("en-US,en;q=0.9", LocaleDE))
	assert.Equal(t, LocaleDE, ResolveLocale("de-CH", LocaleEN))
	assert.Equal(t, LocaleEN, ResolveLocale("", LocaleEN))
	assert.Equal(t, LocaleDE, ResolveLocale("", ""))
}

func TestUserMessageNeverLeaksCause(t *testing.T) {
	msg := UserMessage(CodeEngineFailed, LocaleEN)
	assert.NotEmpty(t, msg)
	assert.NotContains(t, msg, "ENGINE_FAILED")
	assert.Equal(t, UserMessage(CodeInternal, LocaleDE), UserMessage("NOPE", "fr"))
}
