package realtime

import "strings"

// punctuation lists every character stripped from a streaming transcript:
// sentence and clause punctuation in wide and narrow forms plus brackets and
// quotes. Streaming results are punctuation-free by contract; the batch
// clients trim only trailing punctuation.
const punctuation = "。，！？、；：“”.,!?;:\"'（）()【】[]《》<>—…·‘’"

// stripPunctuation removes punctuation everywhere in the text, not just at
// the edges.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
}
