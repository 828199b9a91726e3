package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDays(t *testing.T) {
	cases := []struct {
		name string
		in   []Weekday
		want []Weekday
	}{
		{
			name: "sorts out of order",
			in:   []Weekday{Friday, Monday, Wednesday},
			want: []Weekday{Monday, Wednesday, Friday},
		},
		{
			name: "drops duplicates",
			in:   []Weekday{Monday, Monday, Sunday, Monday},
			want: []Weekday{Sunday, Monday},
		},
		{
			name: "drops invalid values",
			in:   []Weekday{Tuesday, Weekday(-1), Weekday(7), Saturday},
			want: []Weekday{Tuesday, Saturday},
		},
		{
			name: "empty stays empty",
			in:   nil,
			want: []Weekday{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDays(tc.in))
		})
	}
}

func TestWeekdayString(t *testing.T) {
	assert.Equal(t, "sunday", Sunday.String())
	assert.Equal(t, "saturday", Saturday.String())
	assert.Equal(t, "weekday(9)", Weekday(9).String())
}

func TestFormatMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{1, "00:01"},
		{390, "06:30"},
		{720, "12:00"},
		{1439, "23:59"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatMinutes(tc.minutes))
	}
}

func TestAlarmDisplayMatchesMinutes(t *testing.T) {
	a := Alarm{Minutes: 7*60 + 5}
	assert.Equal(t, "07:05", a.Display())
}

func TestValidMinutes(t *testing.T) {
	assert.True(t, ValidMinutes(0))
	assert.True(t, ValidMinutes(1439))
	assert.False(t, ValidMinutes(-1))
	assert.False(t, ValidMinutes(1440))
}
