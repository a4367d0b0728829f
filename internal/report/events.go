package report

import (
	"errors"

	"github.com/apex/log"
)

// Generation event names.
const (
	EventGenerationStart   = "pdf_generation_start"
	EventGenerationSuccess = "pdf_generation_success"
	EventGenerationError   = "pdf_generation_error"
)

func eventFields(params map[string]any) log.Fields {
	fields := make(log.Fields, len(params)+4)
	for k, v := range params {
		fields[k] = v
	}
	return fields
}

// errorLocation returns the chain of operations that failed, outermost first.
func errorLocation(err error) string {
	var loc string
	for err != nil {
		var re *Error
		if !errors.As(err, &re) {
			break
		}
		if loc != "" {
			loc += " > "
		}
		loc += re.Op
		err = re.Err
	}
	return loc
}
