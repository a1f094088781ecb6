package resource

import "net/http"

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Response is the envelope every operation returns.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Meta  *Meta  `json:"meta,omitempty"`

	Status int `json:"-"`
}

func ok(data any) *Response {
	return &Response{Data: data, Status: http.StatusOK}
}

func created(data any) *Response {
	return &Response{Data: data, Status: http.StatusCreated}
}

// TotalPages is ceil(total/limit), and zero when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
