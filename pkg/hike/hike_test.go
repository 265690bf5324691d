package hike

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartFieldsValidate(t *testing.T) {
	tests := []struct {
		name      string
		fields    StartFields
		wantField string
	}{
		{name: "valid", fields: StartFields{StartMood: 5, Title: "Ridge loop"}},
		{name: "missing mood", fields: StartFields{}, wantField: "start_mood"},
		{name: "mood too high", fields: StartFields{StartMood: 11}, wantField: "start_mood"},
		{name: "empty tag", fields: StartFields{StartMood: 3, Tags: []string{""}}, wantField: "tags[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFields))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
}

func TestClosingFieldsValidate(t *testing.T) {
	assert.NoError(t, ClosingFields{EndMood: 10, DistanceKm: 12.5, Rating: 5}.Validate())

	err := ClosingFields{EndMood: 0}.Validate()
	assert.ErrorIs(t, err, ErrInvalidFields)
	assert.Contains(t, err.Error(), "end_mood is required")

	err = ClosingFields{EndMood: 4, DistanceKm: -1}.Validate()
	assert.Contains(t, err.Error(), "distance_km must be greater than or equal to 0")

	err = ClosingFields{EndMood: 4, Rating: 6}.Validate()
	assert.Contains(t, err.Error(), "rating must be less than or equal to 5")
}

func TestEditValidateAndApply(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(StartFields{StartMood: 4, Title: "old"}, now)

	bad := 0
	assert.ErrorIs(t, Edit{StartMood: &bad}.Validate(), ErrInvalidFields)

	title := "new"
	endMood := 9
	tags := []string{"forest"}
	edit := Edit{Title: &title, EndMood: &endMood, Tags: &tags}
	require.NoError(t, edit.Validate())

	later := now.Add(time.Minute)
	edit.Apply(s, later)

	assert.Equal(t, "new", s.Title)
	assert.Equal(t, 0, s.EndMood, "end mood is not editable before completion")
	assert.Equal(t, []string{"forest"}, s.Tags)
	assert.Equal(t, later, s.UpdatedAt)
	assert.Equal(t, now, s.StartedAt)
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestSessionComplete(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s := NewSession(StartFields{StartMood: 3}, start)

	require.True(t, s.IsActive())
	assert.True(t, ValidID(s.ID))
	assert.Zero(t, s.Duration())

	_, ok := s.MoodLift()
	assert.False(t, ok)

	end := start.Add(2 * time.Hour)
	s.Complete(ClosingFields{EndMood: 8, DistanceKm: 7.2, Steps: 9000, Rating: 4}, end)

	assert.Equal(t, StatusCompleted, s.Status)
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, end, *s.EndedAt)
	assert.Equal(t, 2*time.Hour, s.Duration())
	assert.False(t, s.IsActive())

	lift, ok := s.MoodLift()
	assert.True(t, ok)
	assert.Equal(t, 5, lift)
}

func TestSessionCloneIsDeep(t *testing.T) {
	now := time.Now()
	s := NewSession(StartFields{StartMood: 5, Tags: []string{"a"}}, now)
	s.Complete(ClosingFields{EndMood: 6}, now.Add(time.Hour))

	c := s.Clone()
	c.Tags[0] = "b"
	*c.EndedAt = now

	assert.Equal(t, "a", s.Tags[0])
	assert.NotEqual(t, now, *s.EndedAt)
	assert.Nil(t, (*Session)(nil).Clone())
}

func TestAlreadyActiveError(t *testing.T) {
	err := error(&AlreadyActiveError{ExistingID: "abc"})

	assert.ErrorIs(t, err, ErrSessionAlreadyActive)
	assert.Contains(t, err.Error(), "abc")

	var active *AlreadyActiveError
	require.True(t, errors.As(err, &active))
	assert.Equal(t, "abc", active.ExistingID)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(NewID()))
	assert.False(t, ValidID("not-a-uuid"))
	assert.False(t, ValidID(""))
}

func TestRecordingDurationValue(t *testing.T) {
	r := Recording{Duration: 2.5}
	assert.Equal(t, 2500*time.Millisecond, r.DurationValue())
}
