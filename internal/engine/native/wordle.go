package native

import (
	"math"
	"strings"
)

const (
	wordLen      = 5
	alphabet     = 26
	letterBits   = 5
	letterMask   = 0x1F
	patternCount = 243
	solved       = 242
	maxTurns     = 6
)

// packedWord stores five 5-bit letter codes plus a letter-presence mask.
type packedWord struct {
	letters uint32
	mask    uint32
}

type wordEntry struct {
	text   string
	packed packedWord
}

// normalizeWord lowercases ASCII letters and drops everything else.
func normalizeWord(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c - 'A' + 'a')
		case c >= 'a' && c <= 'z':
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isValidWord(word string) bool {
	if len(word) != wordLen {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

func isValidPattern(pattern string) bool {
	if len(pattern) != wordLen {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] < '0' || pattern[i] > '2' {
			return false
		}
	}
	return true
}

func encodeWord(word string) packedWord {
	var p packedWord
	for i := 0; i < wordLen; i++ {
		letter := uint32(word[i] - 'a')
		p.letters |= (letter & letterMask) << (i * letterBits)
		p.mask |= 1 << letter
	}
	return p
}

func letterAt(p packedWord, i int) uint8 {
	return uint8((p.letters >> (i * letterBits)) & letterMask)
}

// computePattern returns the base-3 feedback value (digit i weighted 3^i).
// Greens consume letters first; yellows are limited by the remaining counts.
func computePattern(guess, target packedWord) int {
	var counts [alphabet]int
	var result [wordLen]int
	for i := 0; i < wordLen; i++ {
		counts[letterAt(target, i)]++
	}
	for i := 0; i < wordLen; i++ {
		if g := letterAt(guess, i); g == letterAt(target, i) {
			result[i] = 2
			counts[g]--
		}
	}
	for i := 0; i < wordLen; i++ {
		if result[i] != 0 {
			continue
		}
		g := letterAt(guess, i)
		if target.mask&(1<<g) == 0 {
			continue
		}
		if counts[g] > 0 {
			result[i] = 1
			counts[g]--
		}
	}
	pattern, base := 0, 1
	for i := 0; i < wordLen; i++ {
		pattern += result[i] * base
		base *= 3
	}
	return pattern
}

func patternString(pattern int) string {
	out := make([]byte, wordLen)
	for i := 0; i < wordLen; i++ {
		out[i] = byte('0' + pattern%3)
		pattern /= 3
	}
	return string(out)
}

// isConsistent reports whether candidate could be the target given the
// feedback pattern for guess.
func isConsistent(candidate, guess, pattern string) bool {
	if len(candidate) != wordLen || len(guess) != wordLen || len(pattern) != wordLen {
		return false
	}
	var counts [alphabet]int
	for i := 0; i < wordLen; i++ {
		switch pattern[i] {
		case '2':
			if candidate[i] != guess[i] {
				return false
			}
		case '0', '1':
			c := candidate[i]
			if c < 'a' || c > 'z' {
				return false
			}
			counts[c-'a']++
		default:
			return false
		}
	}
	for i := 0; i < wordLen; i++ {
		p := pattern[i]
		if p == '2' {
			continue
		}
		g := guess[i]
		if g < 'a' || g > 'z' {
			return false
		}
		idx := g - 'a'
		if p == '1' {
			if candidate[i] == g || counts[idx] == 0 {
				return false
			}
			counts[idx]--
		} else if counts[idx] > 0 {
			return false
		}
	}
	return true
}

// filterScalar checks every remaining word with isConsistent.
func filterScalar(words []wordEntry, remaining []int, guess, pattern string) []int {
	out := make([]int, 0, len(remaining))
	for _, idx := range remaining {
		if isConsistent(words[idx].text, guess, pattern) {
			out = append(out, idx)
		}
	}
	return out
}

const filterLanes = 8

// filterPacked rejects words whose green positions disagree with the guess
// using one masked compare per packed word, in fixed-width batches, before
// the full consistency check.
func filterPacked(words []wordEntry, remaining []int, guess, pattern string) []int {
	var greenMask uint32
	for i := 0; i < wordLen; i++ {
		if pattern[i] == '2' {
			greenMask |= letterMask << (i * letterBits)
		}
	}
	if greenMask == 0 {
		return filterScalar(words, remaining, guess, pattern)
	}
	greenBits := encodeWord(guess).letters & greenMask

	out := make([]int, 0, len(remaining))
	var lanes [filterLanes]uint32
	var pass [filterLanes]bool
	for offset := 0; offset < len(remaining); offset += filterLanes {
		batch := remaining[offset:min(offset+filterLanes, len(remaining))]
		for lane, idx := range batch {
			lanes[lane] = words[idx].packed.letters
		}
		for lane := range batch {
			pass[lane] = lanes[lane]&greenMask == greenBits
		}
		for lane, idx := range batch {
			if pass[lane] && isConsistent(words[idx].text, guess, pattern) {
				out = append(out, idx)
			}
		}
	}
	return out
}

func entropyOf(counts *[patternCount]int, total int) float64 {
	if total == 0 {
		return 0
	}
	inv := 1 / float64(total)
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) * inv
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func patternCounts(words []wordEntry, guess int, targets []int) [patternCount]int {
	var counts [patternCount]int
	g := words[guess].packed
	for _, t := range targets {
		counts[computePattern(g, words[t].packed)]++
	}
	return counts
}

// adversarialPattern picks the pattern that keeps the most targets alive,
// preferring fewer greens, then fewer yellows, then the lower pattern value.
func adversarialPattern(counts *[patternCount]int) int {
	best, bestCount, bestGreens, bestYellows := 0, -1, wordLen+1, wordLen+1
	for pattern, count := range counts {
		if count == 0 {
			continue
		}
		greens, yellows := 0, 0
		for tmp, i := pattern, 0; i < wordLen; i++ {
			switch tmp % 3 {
			case 2:
				greens++
			case 1:
				yellows++
			}
			tmp /= 3
		}
		better := count > bestCount ||
			(count == bestCount && (greens < bestGreens ||
				(greens == bestGreens && (yellows < bestYellows ||
					(yellows == bestYellows && pattern < best)))))
		if better {
			best, bestCount, bestGreens, bestYellows = pattern, count, greens, yellows
		}
	}
	return best
}
