package models

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Notice  string      `json:"notice,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(err string) Response {
	return Response{
		Success: false,
		Error:   err,
	}
}

// NoticeResponse is shown to the buyer as-is; nothing changed server side.
func NoticeResponse(notice string) Response {
	return Response{
		Success: false,
		Notice:  notice,
	}
}
