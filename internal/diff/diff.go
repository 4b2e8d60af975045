// Package diff computes line, word and character deltas between two texts.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Change is one unit of a delta: a line, a word, or a run of characters.
type Change struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

type Stats struct {
	AddedLines    int `json:"addedLines"`
	RemovedLines  int `json:"removedLines"`
	TotalLinesOld int `json:"totalLinesOld"`
	TotalLinesNew int `json:"totalLinesNew"`
	AddedWords    int `json:"addedWords"`
	RemovedWords  int `json:"removedWords"`
	TotalWordsOld int `json:"totalWordsOld"`
	TotalWordsNew int `json:"totalWordsNew"`
	AddedChars    int `json:"addedChars"`
	RemovedChars  int `json:"removedChars"`
	TotalCharsOld int `json:"totalCharsOld"`
	TotalCharsNew int `json:"totalCharsNew"`
}

type ChangeType string

const (
	ChangeNone  ChangeType = "none"
	ChangeMinor ChangeType = "minor"
	ChangeMajor ChangeType = "major"
)

// majorThreshold is the number of touched lines above which an edit is major.
const majorThreshold = 10

type Summary struct {
	HasChanges bool       `json:"hasChanges"`
	ChangeType ChangeType `json:"changeType"`
	NetChange  int        `json:"netChange"`
}

type Result struct {
	Lines   []Change `json:"lineDiff"`
	Words   []Change `json:"wordDiff"`
	Chars   []Change `json:"charDiff"`
	Stats   Stats    `json:"statistics"`
	Summary Summary  `json:"summary"`
}

// Compute diffs old against new. It has no side effects.
func Compute(oldText, newText string) Result {
	dmp := diffmatchpatch.New()

	lines := lineChanges(dmp, oldText, newText)
	words := tokenChanges(dmp, strings.Fields(oldText), strings.Fields(newText))
	chars := charChanges(dmp, oldText, newText)

	stats := Stats{
		TotalLinesOld: len(splitLines(oldText)),
		TotalLinesNew: len(splitLines(newText)),
		TotalWordsOld: len(strings.Fields(oldText)),
		TotalWordsNew: len(strings.Fields(newText)),
		TotalCharsOld: len([]rune(oldText)),
		TotalCharsNew: len([]rune(newText)),
	}
	stats.AddedLines, stats.RemovedLines = count(lines, func(string) int { return 1 })
	stats.AddedWords, stats.RemovedWords = count(words, func(string) int { return 1 })
	stats.AddedChars, stats.RemovedChars = count(chars, func(s string) int { return len([]rune(s)) })

	touched := stats.AddedLines + stats.RemovedLines
	summary := Summary{
		HasChanges: touched > 0,
		ChangeType: ChangeNone,
		NetChange:  stats.AddedLines - stats.RemovedLines,
	}
	switch {
	case touched > majorThreshold:
		summary.ChangeType = ChangeMajor
	case touched > 0:
		summary.ChangeType = ChangeMinor
	}

	return Result{Lines: lines, Words: words, Chars: chars, Stats: stats, Summary: summary}
}

// Reconstruct rebuilds the new text from a line delta.
func Reconstruct(lines []Change) string {
	var b strings.Builder
	for _, c := range lines {
		if c.Op != OpDelete {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Source rebuilds the old text from a line delta.
func Source(lines []Change) string {
	var b strings.Builder
	for _, c := range lines {
		if c.Op != OpInsert {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func lineChanges(dmp *diffmatchpatch.DiffMatchPatch, oldText, newText string) []Change {
	a, b, table := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(a, b, false), table)
	out := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		op := opFor(d.Type)
		for _, line := range splitLines(d.Text) {
			out = append(out, Change{Op: op, Text: line})
		}
	}
	return out
}

// tokenChanges reuses the line differ by placing one token per line.
func tokenChanges(dmp *diffmatchpatch.DiffMatchPatch, oldTokens, newTokens []string) []Change {
	a, b, table := dmp.DiffLinesToRunes(joinTokens(oldTokens), joinTokens(newTokens))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(a, b, false), table)
	out := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		op := opFor(d.Type)
		for _, token := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if token == "" {
				continue
			}
			out = append(out, Change{Op: op, Text: token})
		}
	}
	return out
}

func charChanges(dmp *diffmatchpatch.DiffMatchPatch, oldText, newText string) []Change {
	diffs := dmp.DiffMain(oldText, newText, false)
	out := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		out = append(out, Change{Op: opFor(d.Type), Text: d.Text})
	}
	return out
}

func joinTokens(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "\n") + "\n"
}

// splitLines splits after each newline and keeps the terminator, so joining
// the parts gives back the input.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func opFor(t diffmatchpatch.Operation) Op {
	switch t {
	case diffmatchpatch.DiffInsert:
		return OpInsert
	case diffmatchpatch.DiffDelete:
		return OpDelete
	default:
		return OpEqual
	}
}

func count(changes []Change, weight func(string) int) (added, removed int) {
	for _, c := range changes {
		switch c.Op {
		case OpInsert:
			added += weight(c.Text)
		case OpDelete:
			removed += weight(c.Text)
		}
	}
	return added, removed
}
