package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldKey(t *testing.T) {
	assert.Equal(t, "staatsangehorigkeit", FoldKey("Staatsangehörigkeit:"))
	assert.Equal(t, "fahrausweis kat b", FoldKey("  Fahrausweis   Kat. B "))
	assert.Equal(t, "strasse", FoldKey("Straße"))
	assert.Equal(t, "", FoldKey(" -- "))
}

func TestCaseKeyKeepsPunctuation(t *testing.T) {
	assert.Equal(t, "c++", CaseKey(" C++ "))
	assert.NotEqual(t, CaseKey("C#"), CaseKey("C++"))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard("Fahrausweis Kat. B", "fahrausweis kat b"))
	assert.InDelta(t, 0.5, Jaccard("Fahrausweis Kat. B", "Fahrausweis Kat. C"), 1e-9)
	assert.Equal(t, 0.0, Jaccard("", "x"))
	assert.Equal(t, 0.0, Jaccard("Python", "Kubernetes"))
}
