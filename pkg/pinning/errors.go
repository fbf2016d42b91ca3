package pinning

import "fmt"

// StatusError is a non-2xx response from the pinning service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "pinning request failed"
	}
	return fmt.Sprintf("pinning request failed with status %d: %s", e.Status, e.Body)
}

// UploadError is returned once every pin attempt for a file has failed.
type UploadError struct {
	Name  string
	Cause error
}

func (e *UploadError) Error() string {
	if e == nil {
		return "upload failed"
	}
	return fmt.Sprintf("upload %s: %v", e.Name, e.Cause)
}

func (e *UploadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
