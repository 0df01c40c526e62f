package models

// RecordError ошибка обработки одной записи в пакетном прогоне.
type RecordError struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error"`
}

// JobResult итог прогона задачи напоминаний или отчетов.
type JobResult struct {
	Processed int           `json:"processed"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// AddError добавляет ошибку записи id.
func (r *JobResult) AddError(id string, err error) {
	r.Errors = append(r.Errors, RecordError{RecordID: id, Error: err.Error()})
}
