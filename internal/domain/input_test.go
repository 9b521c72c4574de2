package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDateFormats(t *testing.T) {
	tests := map[string]struct {
		body string
		want time.Time
	}{
		"rfc3339":        {body: `"2026-03-20T18:00:00Z"`, want: time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)},
		"rfc3339 offset": {body: `"2026-03-20T23:30:00+05:30"`, want: time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)},
		"datetime-local": {body: `"2026-03-20T18:00"`, want: time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)},
		"with seconds":   {body: `"2026-03-20T18:00:30"`, want: time.Date(2026, 3, 20, 18, 0, 30, 0, time.UTC)},
		"plain date":     {body: `"2026-03-20"`, want: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)},
		"blank":          {body: `""`},
		"null":           {body: `null`},
		"false":          {body: `false`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var d MatchDate
			require.NoError(t, json.Unmarshal([]byte(tc.body), &d))
			assert.True(t, tc.want.Equal(d.Time), "got %v", d.Time)
		})
	}
}

func TestMatchDateRejectsGarbage(t *testing.T) {
	var d MatchDate
	assert.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"when":"now"}`), &d))
}

func TestCreateMatchRequestAcceptsFormValues(t *testing.T) {
	var req CreateMatchRequest
	body := `{"title":"Friday Night","date":"2026-03-20T18:00","costPerHour":"1200","durationHours":1.5}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC), req.Date.Time)
	assert.Equal(t, Number(1200), req.CostPerHour)
	assert.Equal(t, Number(1.5), req.DurationHours)
}

func TestUpdateMatchRequestFalsyFieldsKeepValues(t *testing.T) {
	date := time.Date(2026, 3, 16, 7, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		body      string
		wantTitle string
		wantCost  float64
		wantDate  time.Time
	}{
		"blank strings": {
			body:      `{"title":"Renamed","turfName":"","date":"","costPerHour":"","durationHours":""}`,
			wantTitle: "Renamed", wantCost: 500, wantDate: date,
		},
		"nulls and false": {
			body:      `{"title":false,"turfName":null,"date":null,"costPerHour":false,"durationHours":0}`,
			wantTitle: "Sunday Smash", wantCost: 500, wantDate: date,
		},
		"numeric string and plain date": {
			body:      `{"costPerHour":"650","date":"2026-04-01"}`,
			wantTitle: "Sunday Smash", wantCost: 650, wantDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := &Match{Title: "Sunday Smash", TurfName: "Green Arena", Date: date, CostPerHour: 500, DurationHours: 1}

			var req UpdateMatchRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			req.Apply(m)

			assert.Equal(t, tc.wantTitle, m.Title)
			assert.Equal(t, "Green Arena", m.TurfName)
			assert.Equal(t, tc.wantCost, m.CostPerHour)
			assert.Equal(t, 1.0, m.DurationHours)
			assert.True(t, tc.wantDate.Equal(m.Date))
		})
	}
}

func TestNumberRejectsNonNumeric(t *testing.T) {
	var n Number
	assert.Error(t, json.Unmarshal([]byte(`"cheap"`), &n))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &n))
}
