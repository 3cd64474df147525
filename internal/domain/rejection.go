package domain

import "fmt"

// Rejection is a well-formed refusal from the backend, as opposed to a
// transport failure. Kind is one of the Err*Rejected sentinels.
type Rejection struct {
	Kind    error
	Status  int
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("%v (status %d)", r.Kind, r.Status)
	}

	return fmt.Sprintf("%v (status %d): %s", r.Kind, r.Status, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}
