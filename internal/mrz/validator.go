package mrz

// Validator turns recognized text into the record for the configured layout
type Validator struct {
	layout   Layout
	accuracy float64
	td1      Parser
	td3      Parser
}

// NewValidator creates a Validator with the built-in TD1 and TD3 parsers
func NewValidator(layout Layout, accuracy float64) *Validator {
	return NewValidatorWithParsers(layout, accuracy, TD1Parser{}, TD3Parser{})
}

// NewValidatorWithParsers creates a Validator with custom parsers for testing
func NewValidatorWithParsers(layout Layout, accuracy float64, td1, td3 Parser) *Validator {
	return &Validator{
		layout:   layout,
		accuracy: accuracy,
		td1:      td1,
		td3:      td3,
	}
}

// Validate parses text. In Auto mode TD1 is tried first and TD3 is only
// consulted when the TD1 score is below the accuracy threshold; a passing
// TD1 record is returned without looking at TD3.
func (v *Validator) Validate(text string) *Record {
	switch v.layout {
	case TD1:
		return v.td1.Parse(text)
	case TD3:
		return v.td3.Parse(text)
	default:
		rec := v.td1.Parse(text)
		if rec.Score < v.accuracy {
			rec = v.td3.Parse(text)
		}
		return rec
	}
}

// Accuracy returns the threshold a record must reach to be accepted
func (v *Validator) Accuracy() float64 {
	return v.accuracy
}
