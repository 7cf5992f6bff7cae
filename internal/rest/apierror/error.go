package apierror

// ApiError is the JSON body of every non-2xx response.
type ApiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
