package models

import "time"

// ActivitySummary агрегаты по журналам пользователя за период.
type ActivitySummary struct {
	MoodEntries  int
	EnergySum    float64
	SymptomDays  int
	FoodEntries  int
	SleepEntries int
	WindowStart  time.Time
	WindowEnd    time.Time
}

// Report готовый к отправке отчет.
type Report struct {
	Frequency    string
	PeriodLabel  string
	AvgEnergy    string // одна цифра после запятой или "N/A"
	SymptomDays  int
	MealsLogged  int
	MoodEntries  int
	SleepEntries int
	HTML         string
	Date         string
}
