package saga

// Response единый конверт ответа всех endpoints саги.
// HTTP 200 для любого корректно обработанного запроса; success=false с message
// означает, что событие доставлено, но применять нечего (например, сага не
// найдена) — паблишер такие ответы не ретраит.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK формирует успешный ответ с данными
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// NotApplicable формирует ответ "применять нечего" (доставлено, но не применимо)
func NotApplicable(message string) Response {
	return Response{Success: false, Message: message}
}

// Failed формирует ответ о бизнес-сбое шага
func Failed(errMsg string) Response {
	return Response{Success: false, Error: errMsg}
}
