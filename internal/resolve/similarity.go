package resolve

// Similarity returns how alike two raw company names are, in [0, 1].
// It is symmetric, returns 1.0 when both names normalize to the same string,
// and 0.0 when either name normalizes to nothing. Otherwise it is the
// Ratcliff/Obershelp ratio of the normalized names.
func Similarity(name1, name2 string) float64 {
	return normalizedSimilarity(NormalizeName(name1), NormalizeName(name2))
}

// normalizedSimilarity scores two names that are already normalized.
func normalizedSimilarity(norm1, norm2 string) float64 {
	if norm1 == "" || norm2 == "" {
		return 0.0
	}
	if norm1 == norm2 {
		return 1.0
	}
	return Ratio(norm1, norm2)
}

// Ratio computes the Ratcliff/Obershelp similarity 2*M/T, where M is the number
// of characters in matching blocks and T the combined length. Arguments are
// put in a canonical order first so that Ratio(a, b) == Ratio(b, a) even when
// the longest-block tie-break would otherwise differ.
func Ratio(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

type span struct {
	alo, ahi, blo, bhi int
}

// matchingRunes counts the runes covered by the matching blocks of a and b:
// find the longest common block, then recurse into the pieces on either side.
func matchingRunes(a, b []rune) int {
	index := make(map[rune][]int, len(b))
	for j, r := range b {
		index[r] = append(index[r], j)
	}

	total := 0
	stack := []span{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, k := longestMatch(a, index, s)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			stack = append(stack, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			stack = append(stack, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside s. Among
// equally long blocks it returns the one starting earliest in a, then in b.
func longestMatch(a []rune, index map[rune][]int, s span) (besti, bestj, bestk int) {
	besti, bestj = s.alo, s.blo
	lengths := map[int]int{}
	for i := s.alo; i < s.ahi; i++ {
		next := map[int]int{}
		for _, j := range index[a[i]] {
			if j < s.blo {
				continue
			}
			if j >= s.bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return besti, bestj, bestk
}
