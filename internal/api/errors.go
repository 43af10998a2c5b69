package api

import "fmt"

// transportMsg is the fixed user-facing message for network failures. The
// raw transport error is kept for logs but never shown verbatim.
const transportMsg = "network request failed, please check your connection and try again"

// TransportError wraps an unreachable-network failure
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return transportMsg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError is a backend response with code != 200. The message comes
// from the envelope's msg field verbatim.
type BusinessError struct {
	Code int
	Msg  string
}

func (e *BusinessError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("backend returned code %d", e.Code)
}

// PartialUploadError reports a multi-upload where some files failed.
// Successful uploads are preserved, not rolled back.
type PartialUploadError struct {
	Succeeded []Upload
	Failed    []string
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("%d of %d files failed to upload", len(e.Failed), len(e.Succeeded)+len(e.Failed))
}
