package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens_Normalization(t *testing.T) {
	assert.Equal(t,
		map[string]bool{"bitcoin": true, "reach": true, "100000": true, "2025": true},
		Tokens("Will Bitcoin reach $100K by 2025?"),
	)
	assert.Equal(t,
		map[string]bool{"bitcoin": true, "reach": true, "100000": true, "2025": true},
		Tokens("Will BTC hit $100,000 in 2025?"),
	)
	assert.True(t, Tokens("GDP above $1,000,000,000?")["1000000000"])
}

func TestTitleSimilarity(t *testing.T) {
	a := "Will Bitcoin reach $100K by 2025?"
	b := "Will BTC hit $100,000 in 2025?"

	assert.Equal(t, 1.0, TitleSimilarity(a, b))
	assert.Equal(t, TitleSimilarity(a, b), TitleSimilarity(b, a))

	unrelated := TitleSimilarity(a, "Will the Lakers win the NBA championship?")
	assert.Equal(t, 0.0, unrelated)

	// Same question with a different price level stays under the threshold.
	near := TitleSimilarity(a, "Will Bitcoin reach $150K by 2025?")
	assert.Less(t, near, DefaultSimilarityThreshold)
	assert.Greater(t, near, 0.5)

	assert.Equal(t, 0.0, TitleSimilarity("", a))
	assert.Equal(t, 0.0, TitleSimilarity("the of in", "will be"))
}
