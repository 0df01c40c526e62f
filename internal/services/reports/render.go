package reports

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/magabrotheeeer/menoease/internal/lib/clock"
	"github.com/magabrotheeeer/menoease/internal/models"
)

const emailDateLayout = "January 2, 2006"

var summaryTemplate = template.Must(template.New("summary").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h3 style="color: #7b5bd4;">{{.PeriodLabel}} Summary</h3>
  <ul style="list-style: none; padding: 0;">
    <li style="margin: 8px 0;"><strong>Average Energy Level:</strong> {{.AvgEnergy}}/11</li>
    <li style="margin: 8px 0;"><strong>Days with Symptoms:</strong> {{.SymptomDays}}</li>
    <li style="margin: 8px 0;"><strong>Meals Logged:</strong> {{.MealsLogged}}</li>
    <li style="margin: 8px 0;"><strong>Mood Entries:</strong> {{.MoodEntries}}</li>
    <li style="margin: 8px 0;"><strong>Sleep Entries:</strong> {{.SleepEntries}}</li>
  </ul>
</div>
`))

// Window возвращает даты начала и конца периода отчета для локального времени local.
func Window(frequency string, local time.Time) (from, to time.Time) {
	switch frequency {
	case models.ReportWeekly:
		return clock.StartOfWeek(local), local
	case models.ReportMonthly:
		return clock.StartOfMonth(local), local
	default:
		return clock.StartOfDay(local), local
	}
}

// PeriodLabel подпись периода в заголовке отчета.
func PeriodLabel(frequency string) string {
	switch frequency {
	case models.ReportWeekly:
		return "This Week"
	case models.ReportMonthly:
		return "This Month"
	default:
		return "Today"
	}
}

// AverageEnergy среднее по записям настроения с одним знаком после запятой, "N/A" без записей.
func AverageEnergy(s models.ActivitySummary) string {
	if s.MoodEntries == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", s.EnergySum/float64(s.MoodEntries))
}

// Build собирает отчет из агрегатов.
func Build(frequency string, s models.ActivitySummary, local time.Time) (models.Report, error) {
	r := models.Report{
		Frequency:    frequency,
		PeriodLabel:  PeriodLabel(frequency),
		AvgEnergy:    AverageEnergy(s),
		SymptomDays:  s.SymptomDays,
		MealsLogged:  s.FoodEntries,
		MoodEntries:  s.MoodEntries,
		SleepEntries: s.SleepEntries,
		Date:         local.Format(emailDateLayout),
	}
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, r); err != nil {
		return r, fmt.Errorf("reports.Build: %w", err)
	}
	r.HTML = buf.String()
	return r, nil
}

// SMSText однострочная сводка для SMS.
func SMSText(r models.Report, appURL string) string {
	return fmt.Sprintf("MenoEase %s Report: Energy %s/11, %d symptom days, %d meals. View full report: %s/insights",
		r.Frequency, r.AvgEnergy, r.SymptomDays, r.MealsLogged, appURL)
}
