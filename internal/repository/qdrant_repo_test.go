package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassagePointIDIsDeterministic(t *testing.T) {
	id := PassagePointID("linkedin://www.linkedin.com/in/ada", 0)

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, PassagePointID("linkedin://www.linkedin.com/in/ada", 0))
	assert.NotEqual(t, id, PassagePointID("linkedin://www.linkedin.com/in/ada", 1))
	assert.NotEqual(t, id, PassagePointID("linkedin://www.linkedin.com/in/grace", 0))
}
