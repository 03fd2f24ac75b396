package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtline/internal/domain"
)

func TestSyllabusCoversEveryWeek(t *testing.T) {
	topics := All()
	require.Len(t, topics, domain.CourtshipWeeks)
	for i, topic := range topics {
		assert.Equal(t, i+1, topic.Week, "weeks must be contiguous from 1")
		assert.NotEmpty(t, topic.Title, "week %d has no title", topic.Week)
		assert.Contains(t, []string{"couple", "groom", "bride", "supervisor"}, topic.Leader, "week %d leader", topic.Week)
	}
}

func TestByWeek(t *testing.T) {
	topic, ok := ByWeek(1)
	require.True(t, ok)
	assert.Equal(t, 1, topic.Week)

	_, ok = ByWeek(0)
	assert.False(t, ok)
	_, ok = ByWeek(domain.CourtshipWeeks + 1)
	assert.False(t, ok)
}

func TestAllReturnsACopy(t *testing.T) {
	first := All()
	first[0].Title = "scribbled over"
	assert.NotEqual(t, first[0].Title, All()[0].Title)
}
