// Package response содержит вспомогательные типы и функции для формирования
// JSON ответов HTTP обработчиков: вебхука, ручек запуска задач и служебных ручек.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/menoease/internal/models"
)

// Response описывает стандартную структуру JSON ответа служебных ручек.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// ErrorResponse тело ответа при ошибке обработки: короткое описание и подробности.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WebhookReceived тело ответа на принятый вебхук.
type WebhookReceived struct {
	Received bool `json:"received"`
}

// JobResponse тело ответа ручки запуска задачи.
type JobResponse struct {
	Success   bool                 `json:"success"`
	Processed int                  `json:"processed"`
	Errors    []models.RecordError `json:"errors,omitempty"`
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ErrorResponse с описанием и подробностями.
func Error(msg, details string) ErrorResponse {
	return ErrorResponse{
		Error:   msg,
		Message: details,
	}
}

// Received ответ на успешно принятый вебхук.
func Received() WebhookReceived {
	return WebhookReceived{Received: true}
}

// Job переводит результат задачи в ответ ручки.
func Job(res models.JobResult) JobResponse {
	return JobResponse{
		Success:   true,
		Processed: res.Processed,
		Errors:    res.Errors,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "min", "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is out of range", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
