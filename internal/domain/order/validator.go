package order

// Validator enforces the structural precondition on incoming order requests
// before they reach duplicate detection or persistence. Item-level field
// constraints (positive price, quantity >= 1) are deliberately not checked
// here: a violating item surfaces later as a processing failure, not an
// ingestion error.
type Validator struct{}

// NewValidator creates a request Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns ErrEmptyItems when the request carries no items.
func (v *Validator) Validate(req Request) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	return nil
}
