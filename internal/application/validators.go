package application

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arenaops/go-arena/internal/domain"
)

// validate is the shared validator instance with the engine's custom rules
// registered.
var validate = newValidator()

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	// Aliases appear in URLs and cache keys; keep them to a safe charset.
	must(v.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return aliasPattern.MatchString(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// validateContestSettings checks the cross-field rules struct tags cannot
// express. It reports every violation at once as a single
// domain.ValidationError.
func validateContestSettings(contest *domain.Contest, maxLength time.Duration) error {
	ve := domain.NewValidationError("contest")

	if err := validate.Struct(contest); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				ve.Add(fe.Namespace() + " failed rule " + fe.Tag())
			}
		} else {
			ve.Add(err.Error())
		}
	}

	if contest.FinishTime.Before(contest.StartTime) {
		ve.Add("start_time must not be after finish_time")
	} else {
		length := contest.Duration()
		if length > maxLength {
			ve.Add("contest length exceeds the maximum allowed duration")
		}
		if contest.WindowLength != nil {
			if *contest.WindowLength < 0 {
				ve.Add("window_length must not be negative")
			} else if *contest.WindowLength > length {
				ve.Add("window_length must not exceed the contest length")
			}
		}
	}

	if ve.HasViolations() {
		return ve
	}
	return nil
}
