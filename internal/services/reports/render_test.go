package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/menoease/internal/models"
)

func TestWindow(t *testing.T) {
	// Среда, 15 мая 2024.
	local := time.Date(2024, 5, 15, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency string
		wantFrom  string
	}{
		{frequency: models.ReportDaily, wantFrom: "2024-05-15"},
		{frequency: models.ReportWeekly, wantFrom: "2024-05-13"},
		{frequency: models.ReportMonthly, wantFrom: "2024-05-01"},
	}
	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			from, to := Window(tt.frequency, local)
			assert.Equal(t, tt.wantFrom, from.Format("2006-01-02"))
			assert.Equal(t, "2024-05-15", to.Format("2006-01-02"))
		})
	}
}

func TestWindow_WeekStartsMondayOnSunday(t *testing.T) {
	sunday := time.Date(2024, 5, 19, 9, 0, 0, 0, time.UTC)
	from, _ := Window(models.ReportWeekly, sunday)
	assert.Equal(t, "2024-05-13", from.Format("2006-01-02"))
}

func TestAverageEnergy(t *testing.T) {
	assert.Equal(t, "N/A", AverageEnergy(models.ActivitySummary{}))
	assert.Equal(t, "6.5", AverageEnergy(models.ActivitySummary{MoodEntries: 2, EnergySum: 13}))
	assert.Equal(t, "3.3", AverageEnergy(models.ActivitySummary{MoodEntries: 3, EnergySum: 10}))
	assert.Equal(t, "7.0", AverageEnergy(models.ActivitySummary{MoodEntries: 1, EnergySum: 7}))
}

func TestBuild(t *testing.T) {
	local := time.Date(2024, 5, 15, 17, 0, 0, 0, time.UTC)
	r, err := Build(models.ReportWeekly, models.ActivitySummary{
		MoodEntries:  4,
		EnergySum:    26,
		SymptomDays:  2,
		FoodEntries:  9,
		SleepEntries: 3,
	}, local)
	require.NoError(t, err)

	assert.Equal(t, "This Week", r.PeriodLabel)
	assert.Equal(t, "6.5", r.AvgEnergy)
	assert.Equal(t, "May 15, 2024", r.Date)
	assert.Contains(t, r.HTML, "This Week Summary")
	assert.Contains(t, r.HTML, "<strong>Average Energy Level:</strong> 6.5/11")
	assert.Contains(t, r.HTML, "<strong>Days with Symptoms:</strong> 2")
	assert.Contains(t, r.HTML, "<strong>Meals Logged:</strong> 9")
	assert.Contains(t, r.HTML, "<strong>Mood Entries:</strong> 4")
	assert.Contains(t, r.HTML, "<strong>Sleep Entries:</strong> 3")
}

func TestSMSText(t *testing.T) {
	r := models.Report{Frequency: models.ReportDaily, AvgEnergy: "N/A", SymptomDays: 1, MealsLogged: 3}
	assert.Equal(t,
		"MenoEase daily Report: Energy N/A/11, 1 symptom days, 3 meals. View full report: https://menoease.netlify.app/insights",
		SMSText(r, "https://menoease.netlify.app"))
}
