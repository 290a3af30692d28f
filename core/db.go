package core

import "github.com/pkg/errors"

var ErrUnknownOrderingField = errors.New("unknown ordering field")

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CheckOrderings makes sure every ordering field is one of `allowed`.
// Orderings end up in raw ORDER BY clauses so they must never be trusted as is.
func CheckOrderings(orderings []DBOrdering, allowed ...string) error {
	for _, ord := range orderings {
		var ok bool
		for _, fld := range allowed {
			if ord.Field == fld {
				ok = true
				break
			}
		}
		if !ok {
			return NewValidationError(
				errors.Wrap(ErrUnknownOrderingField, ord.Field),
				FieldError{Field: "ordering", Error: ErrUnknownOrderingField.Error() + ": " + ord.Field},
			)
		}
	}
	return nil
}
