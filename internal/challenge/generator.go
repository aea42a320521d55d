// Package challenge produces the proof-of-humanity questions shown to
// unverified members. Generation is pure: nothing here touches storage, and
// the correct answer is only authoritative once persisted by the caller.
package challenge

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ChoiceCount is the number of candidate answers presented per challenge.
const ChoiceCount = 5

// Challenge is a single question with candidate numeric answers, exactly one
// of which is correct.
type Challenge struct {
	Question      string
	CorrectAnswer int
	Choices       []int
}

// Generator builds multiplication challenges.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded from the clock.
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewGeneratorWithSource returns a generator with a caller-provided source,
// used by tests that need deterministic questions.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Generate produces a question like "7 × 6" with ChoiceCount candidate
// answers in shuffled order: the product plus distinct near misses, so the
// wrong answers are not obviously wrong at a glance.
func (g *Generator) Generate() Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := 3 + g.rng.Intn(10)
	b := 3 + g.rng.Intn(10)
	correct := a * b

	seen := map[int]bool{correct: true}
	choices := []int{correct}
	for len(choices) < ChoiceCount {
		// Offsets in [-8, +8], excluding zero.
		offset := g.rng.Intn(17) - 8
		candidate := correct + offset
		if offset == 0 || candidate <= 0 || seen[candidate] {
			continue
		}
		seen[candidate] = true
		choices = append(choices, candidate)
	}
	g.rng.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	return Challenge{
		Question:      fmt.Sprintf("%d × %d", a, b),
		CorrectAnswer: correct,
		Choices:       choices,
	}
}
