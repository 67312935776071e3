package models

type ApiResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Count      int         `json:"count,omitempty"`
	Total      int         `json:"total,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Current int  `json:"current"`
	Pages   int  `json:"pages"`
	Limit   int  `json:"limit"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func ErrorResponse(err string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
	}
}

// PaginatedResponse wraps one page of results; count is the page length.
func PaginatedResponse(data interface{}, count, page, limit, total int) ApiResponse {
	page, limit, offset := PageBounds(page, limit)
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return ApiResponse{
		Success: true,
		Data:    data,
		Count:   count,
		Total:   total,
		Pagination: &Pagination{
			Current: page,
			Pages:   pages,
			Limit:   limit,
			HasNext: offset+count < total,
			HasPrev: page > 1,
		},
	}
}
