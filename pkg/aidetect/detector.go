// Package aidetect classifies user bios as AI-related by keyword and phrase
// matching, and stores the classification next to the collected users.
package aidetect

import (
	"regexp"
	"strings"
	"sync"
)

// ContextPatternPrefix marks matches that came from a context pattern rather
// than a keyword
const ContextPatternPrefix = "context_pattern: "

var defaultKeywords = []string{
	// core terms
	"artificial intelligence", "ai", "machine learning", "ml", "deep learning",
	"neural network", "neural networks", "computer vision", "nlp",
	"natural language processing", "data science", "data scientist",

	// roles
	"ai engineer", "ml engineer", "machine learning engineer", "ai researcher",
	"ai scientist", "ml researcher", "ai specialist",
	"ai developer", "ml developer", "ai consultant", "ai architect",

	// frameworks and models
	"tensorflow", "pytorch", "keras", "scikit-learn", "opencv", "transformers",
	"hugging face", "openai", "anthropic", "claude", "gpt", "chatgpt",
	"large language model", "llm", "generative ai", "gen ai", "stable diffusion",

	// applications
	"image recognition", "speech recognition", "recommender systems",
	"recommendation engine", "chatbot", "virtual assistant", "automated",
	"automation", "predictive analytics", "predictive modeling",

	// research areas
	"reinforcement learning", "supervised learning", "unsupervised learning",
	"transfer learning", "few-shot learning", "zero-shot learning",
	"fine-tuning", "model training", "ai safety", "ai alignment",
	"ai ethics", "responsible ai", "explainable ai", "xai",

	// companies
	"deepmind", "google ai", "microsoft ai",
	"nvidia ai", "meta ai", "apple ai", "amazon ai", "tesla ai",

	// events and communities
	"neurips", "icml", "iclr", "aaai", "ai conference", "ml conference",
	"ai meetup", "ml meetup", "ai community", "ml community",
}

var contextPatterns = []string{
	`\bworking (on|with|in) ai\b`,
	`\bbuilding ai\b`,
	`\bai at\b`,
	`\bai @\b`,
	`\b(founder|ceo|cto) at .*(ai|ml)\b`,
	`\b(ai|ml) (startup|company)\b`,
	`\bresearch(ing)? (ai|ml)\b`,
}

var (
	urlRegex       = regexp.MustCompile(`https?://\S+`)
	emailRegex     = regexp.MustCompile(`\S+@\S+`)
	separatorRegex = regexp.MustCompile(`[|•·/\\]`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// Preprocess lowercases a bio and strips links, emails and separators
func Preprocess(bio string) string {
	if bio == "" {
		return ""
	}
	bio = strings.ToLower(bio)
	bio = urlRegex.ReplaceAllString(bio, "")
	bio = emailRegex.ReplaceAllString(bio, "")
	bio = separatorRegex.ReplaceAllString(bio, " ")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(bio, " "))
}

// Classification is the result of checking one bio
type Classification struct {
	IsAIRelated bool
	Keywords    []string
}

type keyword struct {
	term string
	// word is set for single-word terms, which must match on word boundaries
	word *regexp.Regexp
}

type pattern struct {
	label string
	re    *regexp.Regexp
}

// Detector matches bios against a keyword set and a list of context patterns.
// It is safe for concurrent use.
type Detector struct {
	mu       sync.RWMutex
	keywords []keyword
	known    map[string]bool
	patterns []pattern
}

// NewDetector creates a detector with the built-in keyword set
func NewDetector() *Detector {
	d := &Detector{known: map[string]bool{}}
	d.AddKeywords(defaultKeywords...)
	for _, p := range contextPatterns {
		d.patterns = append(d.patterns, pattern{
			label: ContextPatternPrefix + p,
			re:    regexp.MustCompile(p),
		})
	}
	return d
}

// AddKeywords extends the keyword set and returns how many were new
func (d *Detector) AddKeywords(terms ...string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || d.known[term] {
			continue
		}
		kw := keyword{term: term}
		if !strings.Contains(term, " ") {
			kw.word = regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
		}
		d.keywords = append(d.keywords, kw)
		d.known[term] = true
		added++
	}
	return added
}

// Keywords returns the keyword set in declaration order
func (d *Detector) Keywords() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.keywords))
	for i, kw := range d.keywords {
		out[i] = kw.term
	}
	return out
}

// Classify checks a bio. Matched keywords come first in declaration order,
// followed by the context patterns that matched.
func (d *Detector) Classify(bio string) Classification {
	text := Preprocess(bio)
	if text == "" {
		return Classification{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var found []string
	for _, kw := range d.keywords {
		if kw.word != nil {
			if kw.word.MatchString(text) {
				found = append(found, kw.term)
			}
		} else if strings.Contains(text, kw.term) {
			found = append(found, kw.term)
		}
	}
	for _, p := range d.patterns {
		if p.re.MatchString(text) {
			found = append(found, p.label)
		}
	}
	return Classification{IsAIRelated: len(found) > 0, Keywords: found}
}
