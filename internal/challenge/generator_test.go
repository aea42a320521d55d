package challenge

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ChoiceInvariants(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 200; i++ {
		c := g.Generate()

		require.Len(t, c.Choices, ChoiceCount)

		correctCount := 0
		seen := map[int]bool{}
		for _, choice := range c.Choices {
			assert.Positive(t, choice)
			assert.False(t, seen[choice], "duplicate choice %d", choice)
			seen[choice] = true
			if choice == c.CorrectAnswer {
				correctCount++
			}
		}
		assert.Equal(t, 1, correctCount, "correct answer must appear exactly once")
	}
}

func TestGenerate_QuestionMatchesAnswer(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 50; i++ {
		c := g.Generate()

		var a, b int
		_, err := fmt.Sscanf(c.Question, "%d × %d", &a, &b)
		require.NoError(t, err)
		assert.Equal(t, a*b, c.CorrectAnswer)
	}
}

func TestGenerate_DeterministicWithSeed(t *testing.T) {
	first := NewGeneratorWithSource(rand.NewSource(42)).Generate()
	second := NewGeneratorWithSource(rand.NewSource(42)).Generate()

	assert.Equal(t, first, second)
}
