package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		input   string
		want    Outcome
		wantErr bool
	}{
		{input: "again", want: Again},
		{input: "Hard", want: Hard},
		{input: " GOOD ", want: Good},
		{input: "easy", want: Easy},
		{input: "initial", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutcome(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownOutcome)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcome_IsValid(t *testing.T) {
	for _, o := range Outcomes {
		assert.True(t, o.IsValid(), o.String())
	}
	assert.False(t, Outcome("skip").IsValid())
}
