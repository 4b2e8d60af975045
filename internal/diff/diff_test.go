package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIdenticalTexts(t *testing.T) {
	text := "Timbuktu was a centre of learning.\nIts manuscripts survive.\n"
	result := Compute(text, text)

	assert.Zero(t, result.Stats.AddedLines)
	assert.Zero(t, result.Stats.RemovedLines)
	assert.Zero(t, result.Stats.AddedWords)
	assert.Zero(t, result.Stats.RemovedChars)
	assert.False(t, result.Summary.HasChanges)
	assert.Equal(t, ChangeNone, result.Summary.ChangeType)
	assert.Equal(t, 2, result.Stats.TotalLinesOld)
}

func TestComputeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
	}{
		{name: "append line", old: "a\nb\n", new: "a\nb\nc\n"},
		{name: "replace middle", old: "one\ntwo\nthree\n", new: "one\n2\nthree\n"},
		{name: "no trailing newline", old: "alpha\nbeta", new: "alpha\ngamma"},
		{name: "from empty", old: "", new: "first\nsecond"},
		{name: "to empty", old: "gone\n", new: ""},
		{name: "unicode", old: "Ṣàngó\nỌ̀ṣun\n", new: "Ṣàngó\nỌya\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Compute(tc.old, tc.new)
			assert.Equal(t, tc.new, Reconstruct(result.Lines))
			assert.Equal(t, tc.old, Source(result.Lines))
		})
	}
}

func TestComputeStatistics(t *testing.T) {
	old := "The empire of Mali\nwas founded by Sundiata\n"
	updated := "The empire of Mali\nwas founded by Sundiata Keita\naround 1235\n"
	result := Compute(old, updated)

	assert.Equal(t, 2, result.Stats.AddedLines)
	assert.Equal(t, 1, result.Stats.RemovedLines)
	assert.Equal(t, 1, result.Summary.NetChange)
	assert.Equal(t, ChangeMinor, result.Summary.ChangeType)
	assert.True(t, result.Summary.HasChanges)

	assert.Equal(t, 3, result.Stats.AddedWords)
	assert.Zero(t, result.Stats.RemovedWords)
	assert.Equal(t, 8, result.Stats.TotalWordsOld)
	assert.Equal(t, 11, result.Stats.TotalWordsNew)

	assert.Equal(t, len(updated)-len(old), result.Stats.AddedChars-result.Stats.RemovedChars)
}

func TestComputeMajorChange(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("line\n")
	}
	result := Compute("", b.String())
	require.Equal(t, 12, result.Stats.AddedLines)
	assert.Equal(t, ChangeMajor, result.Summary.ChangeType)
	for _, change := range result.Lines {
		assert.Equal(t, OpInsert, change.Op)
	}
}

func TestWordChangesListTokens(t *testing.T) {
	result := Compute("red green blue", "red yellow blue")
	ops := make([]string, 0, len(result.Words))
	for _, change := range result.Words {
		ops = append(ops, string(change.Op)+":"+change.Text)
	}
	assert.ElementsMatch(t, []string{"equal:red", "delete:green", "insert:yellow", "equal:blue"}, ops)
}
