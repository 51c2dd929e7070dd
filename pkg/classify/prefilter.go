package classify

import (
	"context"
	"log"
	"strings"
	"unicode"

	"github.com/xhad/foiabias/pkg/logger"
)

// PartyKeywords are the obvious partisan markers counted by the cheapest
// tier of the cascade.
var PartyKeywords = []string{
	"democrat",
	"democrats",
	"democratic party",
	"republican",
	"republicans",
	"republican party",
	"gop",
	"dnc",
	"rnc",
	"campaign",
	"election",
	"senator",
	"congressional",
	"president",
}

// ExemplarVoter is the optional embedding tier: a fitted nearest-neighbour
// store over labeled example embeddings.
type ExemplarVoter interface {
	Fitted(ctx context.Context) bool
	Vote(ctx context.Context, text string) (bool, error)
}

type CascadeConfig struct {
	// KeywordThreshold is the keyword count at which the remote classifier
	// is always invoked. Zero or negative means always escalate.
	KeywordThreshold int
	// EntityScanChars bounds how much of the document the entity tier reads.
	EntityScanChars    int
	UseEmbeddingFilter bool
}

// Cascade orders cheap-to-expensive checks deciding whether the remote
// classifier runs: keywords, then named actors, then (optionally) the
// embedding vote. A nil registry means the entity tier is unavailable and
// the cascade degrades to keywords alone.
type Cascade struct {
	config    CascadeConfig
	registry  *Registry
	exemplars ExemplarVoter
	logger    *log.Logger
}

func NewCascade(config CascadeConfig, registry *Registry, exemplars ExemplarVoter) *Cascade {
	if config.EntityScanChars == 0 {
		config.EntityScanChars = 5000
	}
	return &Cascade{
		config:    config,
		registry:  registry,
		exemplars: exemplars,
		logger:    logger.New("Cascade"),
	}
}

// ShouldClassify reports whether the document text warrants the remote call.
func (c *Cascade) ShouldClassify(ctx context.Context, text string) bool {
	if KeywordScore(text) >= c.config.KeywordThreshold {
		return true
	}

	if c.registry == nil {
		// Entity tier unavailable: pure keyword check at the same threshold.
		if c.config.KeywordThreshold <= 0 {
			return true
		}
		lowered := strings.ToLower(text)
		for _, kw := range PartyKeywords {
			if strings.Contains(lowered, kw) {
				return true
			}
		}
	} else if len(c.matchActors(text)) > 0 {
		return true
	}

	if c.config.UseEmbeddingFilter {
		if c.exemplars == nil || !c.exemplars.Fitted(ctx) {
			c.logger.Printf("embedding prefilter enabled but no fitted exemplar store is available; skipping tier")
		} else if hit, err := c.exemplars.Vote(ctx, text); err != nil {
			c.logger.Printf("embedding vote failed: %v", err)
		} else if hit {
			return true
		}
	}

	return false
}

// KeywordScore counts case-insensitive keyword occurrences, one per distinct
// keyword present.
func KeywordScore(text string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, kw := range PartyKeywords {
		if strings.Contains(lowered, kw) {
			score++
		}
	}
	return score
}

// matchActors extracts candidate proper-noun phrases from the scan window
// and matches them against the actor registry.
func (c *Cascade) matchActors(text string) []string {
	window := text
	if len(window) > c.config.EntityScanChars {
		window = window[:c.config.EntityScanChars]
	}

	var hits []string
	seen := make(map[string]bool)
	for _, phrase := range candidatePhrases(window) {
		key := Normalize(phrase)
		if seen[key] {
			continue
		}
		if _, ok := c.registry.Lookup(key); ok {
			seen[key] = true
			hits = append(hits, phrase)
		}
	}
	return hits
}

// candidatePhrases finds runs of capitalized tokens (and all-caps acronyms)
// and emits every sub-phrase of up to four words, a cheap stand-in for a
// person/organization NER pass.
func candidatePhrases(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '\''
	})

	var phrases []string
	var run []string
	flush := func() {
		for size := 1; size <= 4; size++ {
			for i := 0; i+size <= len(run); i++ {
				phrases = append(phrases, strings.Join(run[i:i+size], " "))
			}
		}
		run = run[:0]
	}

	for _, tok := range tokens {
		if isNameToken(tok) {
			// Sentence-ending periods are noise, single-letter initials
			// keep theirs ("Joseph R. Biden").
			if strings.HasSuffix(tok, ".") && len([]rune(tok)) > 2 {
				tok = strings.TrimRight(tok, ".")
			}
			run = append(run, tok)
			continue
		}
		flush()
	}
	flush()
	return phrases
}

func isNameToken(tok string) bool {
	runes := []rune(strings.TrimRight(tok, "."))
	if len(runes) == 0 {
		return false
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	// Bare single capitals only count as initials ("R.").
	if len(runes) == 1 {
		return strings.HasSuffix(tok, ".")
	}
	return true
}
