package models

// ServiceResponse wraps every api payload, Data on success and Error otherwise
type ServiceResponse[T any] struct {
	Data      *T     `json:"data"`
	Error     string `json:"error,omitempty"`
	RequestId string `json:"requestId,omitempty"`
}

func GetServiceResponseOk[T any](data *T) ServiceResponse[T] {
	return ServiceResponse[T]{Data: data}
}

// GetServiceResponseError tags the error with the request id so it can be found in the logs
func GetServiceResponseError(err error, requestId string) ServiceResponse[any] {
	return ServiceResponse[any]{
		Error:     err.Error(),
		RequestId: requestId,
	}
}
