package services

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// WordEntry is a single draw from a word bank.
type WordEntry struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

// WordBank supplies the secret words. Draw returns up to count entries from
// the requested categories (all categories when the slice is empty),
// excluding the words already used in the current game.
type WordBank interface {
	Draw(categories []string, excluded map[string]bool, count int) ([]WordEntry, error)
	// Categories lists the category names the bank can draw from. A nil
	// return means the bank cannot enumerate them and any name is accepted.
	Categories() []string
}

// ErrBankExhausted is returned by Draw under the "fail" exhaustion policy
// when every requested category has run out of unused words.
var ErrBankExhausted = errors.New("word bank exhausted")

// ErrUnknownCategory is returned when room settings name a category the
// word bank does not hold.
var ErrUnknownCategory = errors.New("unknown category")

// Exhaustion policies. "reuse" redraws from the full category once it is
// drained, so a long game repeats words rather than stalling; "fail" makes
// Draw return ErrBankExhausted instead, which ends the game early.
const (
	ReuseWhenExhausted = "reuse"
	FailWhenExhausted  = "fail"
)

// StaticWordBank draws from an in-memory category→words map.
type StaticWordBank struct {
	mu         sync.Mutex
	categories map[string][]string
	policy     string
	rng        *rand.Rand
}

func NewStaticWordBank(categories map[string][]string, policy string) *StaticWordBank {
	if policy == "" {
		policy = ReuseWhenExhausted
	}
	return &StaticWordBank{
		categories: categories,
		policy:     policy,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DefaultWordBank returns a bank over the built-in word list.
func DefaultWordBank(policy string) *StaticWordBank {
	return NewStaticWordBank(defaultWords, policy)
}

func (b *StaticWordBank) Categories() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.categories))
	for name := range b.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *StaticWordBank) Draw(categories []string, excluded map[string]bool, count int) ([]WordEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := categories
	if len(names) == 0 {
		names = make([]string, 0, len(b.categories))
		for name := range b.categories {
			names = append(names, name)
		}
	}

	// Candidate pool: every unused word in the requested categories.
	pool := make([]WordEntry, 0)
	for _, name := range names {
		for _, w := range b.categories[name] {
			if !excluded[w] {
				pool = append(pool, WordEntry{Word: w, Category: name})
			}
		}
	}

	if len(pool) == 0 {
		if b.policy == FailWhenExhausted {
			return nil, ErrBankExhausted
		}
		// Reuse policy: the game has burned through the bank, draw from the
		// full categories again and let words repeat.
		for _, name := range names {
			for _, w := range b.categories[name] {
				pool = append(pool, WordEntry{Word: w, Category: name})
			}
		}
		if len(pool) == 0 {
			return nil, ErrBankExhausted
		}
	}

	b.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}

// defaultWords is the built-in content used when no database source is
// configured.
var defaultWords = map[string][]string{
	"Animaux": {
		"éléphant", "girafe", "pingouin", "papillon", "hérisson",
		"crocodile", "chauve-souris", "écureuil", "dauphin", "caméléon",
	},
	"Nourriture": {
		"café", "croissant", "fromage", "chocolat", "crêpe",
		"baguette", "raclette", "citron", "moutarde", "caramel",
	},
	"Objets": {
		"parapluie", "ciseaux", "bougie", "boussole", "miroir",
		"échelle", "aimant", "valise", "tournevis", "oreiller",
	},
	"Sports": {
		"escalade", "pétanque", "judo", "natation", "escrime",
		"marathon", "plongée", "badminton", "patinage", "arbitre",
	},
	"Métiers": {
		"boulanger", "pompier", "vétérinaire", "jardinier", "plombier",
		"coiffeur", "facteur", "architecte", "chirurgien", "apiculteur",
	},
}
