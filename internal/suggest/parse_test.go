package suggest_test

import (
	"testing"

	"todotree/internal/suggest"

	"github.com/stretchr/testify/assert"
)

func TestParse_DashBullets(t *testing.T) {
	text := "- Book hotel\n- Buy tickets\n- Pack bags"
	assert.Equal(t, []string{"Book hotel", "Buy tickets", "Pack bags"}, suggest.Parse(text))
}

func TestParse_MixedMarkers(t *testing.T) {
	text := `Here are some ideas:

・ Check the weather
* Print the boarding pass
1. Charge the phone
2) Lock the door
3、Water the plants
4． Take out the trash
-   
Thanks!`

	assert.Equal(t, []string{
		"Check the weather",
		"Print the boarding pass",
		"Charge the phone",
		"Lock the door",
		"Water the plants",
		"Take out the trash",
	}, suggest.Parse(text))
}

func TestParse_NoBullets(t *testing.T) {
	assert.Empty(t, suggest.Parse("I cannot help with that."))
	assert.Empty(t, suggest.Parse(""))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, suggest.Validate([]string{"a", "b", "c"}, 3))

	err := suggest.Validate(nil, 0)
	assert.ErrorIs(t, err, suggest.ErrGenerationFailed)

	err = suggest.Validate([]string{"a", "b"}, 3)
	assert.ErrorIs(t, err, suggest.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "at least 3")

	err = suggest.Validate([]string{"Book hotel", "book  HOTEL", "Pack"}, 0)
	assert.ErrorIs(t, err, suggest.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := suggest.BuildPrompt("  Plan trip ", "Kyoto in spring", 3)
	assert.NoError(t, err)
	assert.Contains(t, prompt, "Parent task: Plan trip\n")
	assert.Contains(t, prompt, "Details: Kyoto in spring")
	assert.Contains(t, prompt, "exactly 3 subtasks")
	assert.Contains(t, prompt, "- subtask 3")
	assert.NotContains(t, prompt, "- subtask 4")

	prompt, err = suggest.BuildPrompt("Plan trip", "", 0)
	assert.NoError(t, err)
	assert.NotContains(t, prompt, "Details:")
	assert.Contains(t, prompt, "exactly 3 subtasks")
}
