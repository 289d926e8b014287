package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Verhandlungssicher", LevelC1},
		{"Grundkenntnisse", LevelA2},
		{"Muttersprachlich", LevelNative},
		{"xyz", LevelB1},
		{"", LevelB1},
		{"fließend", LevelC1},
		{"Native speaker", LevelNative},
		{"gute Kenntnisse", LevelB2},
		{"Basic", LevelA2},
		// explicit code wins over the surrounding fluency wording
		{"fliessend (B2)", LevelB2},
		{"c2 verhandlungssicher", LevelC2},
		// native keywords win over codes
		{"Muttersprache / C2", LevelNative},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, LanguageLevel(tc.in))
		})
	}
}

func TestLanguageLevelIdempotent(t *testing.T) {
	for _, in := range []string{"Verhandlungssicher", "B2", "sehr gut", "weird", "Muttersprache"} {
		first := LanguageLevel(in)
		assert.Equal(t, first, LanguageLevel(in))
		// feeding the output back in is stable too
		assert.Equal(t, first, LanguageLevel(first))
	}
}
