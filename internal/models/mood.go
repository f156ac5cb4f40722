package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Mood is the closed set of moods an entry can be tagged with.
// The zero value is not a mood; only the constants below are.
type Mood uint8

const (
	MoodHappy Mood = iota + 1
	MoodSad
	MoodProductive
	MoodRomantic
	MoodAnxious
	MoodCalm
	MoodNeutral
)

var moodNames = [...]string{
	MoodHappy:      "happy",
	MoodSad:        "sad",
	MoodProductive: "productive",
	MoodRomantic:   "romantic",
	MoodAnxious:    "anxious",
	MoodCalm:       "calm",
	MoodNeutral:    "neutral",
}

// Moods returns every mood in display order.
func Moods() []Mood {
	return []Mood{MoodHappy, MoodSad, MoodProductive, MoodRomantic, MoodAnxious, MoodCalm, MoodNeutral}
}

// MoodNames returns the wire names of every mood in display order.
func MoodNames() []string {
	out := make([]string, 0, len(moodNames)-1)
	for _, m := range Moods() {
		out = append(out, m.String())
	}
	return out
}

// ParseMood maps a wire name to its Mood. Matching is exact.
func ParseMood(s string) (Mood, error) {
	for _, m := range Moods() {
		if moodNames[m] == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mood %q (want one of %s)", s, strings.Join(MoodNames(), ", "))
}

func (m Mood) Valid() bool {
	return m >= MoodHappy && m <= MoodNeutral
}

func (m Mood) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mood(%d)", uint8(m))
	}
	return moodNames[m]
}

func (m Mood) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mood %d", uint8(m))
	}
	return []byte(moodNames[m]), nil
}

func (m *Mood) UnmarshalText(b []byte) error {
	parsed, err := ParseMood(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalBSONValue stores the mood as its wire string.
func (m Mood) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !m.Valid() {
		return 0, nil, fmt.Errorf("invalid mood %d", uint8(m))
	}
	return bson.MarshalValue(moodNames[m])
}

func (m *Mood) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("mood: expected string, got %s", t)
	}
	return m.UnmarshalText([]byte(s))
}
