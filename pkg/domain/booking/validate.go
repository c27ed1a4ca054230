package booking

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

// User-facing validation messages.
const (
	MsgRequiredFields = "Please fill in all required fields"
	MsgInvalidEmail   = "Please enter a valid email address"
	MsgInvalidPhone   = "Please enter a valid phone number"
	MsgInvalidAge     = "Please enter a valid age"
	MsgPatientType    = "Please choose how you want to book"
	MsgLoginOrGuest   = "Please login or continue as guest"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

// ValidEmail checks the address shape only: something@something.tld.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidPhone allows digits, spaces, '-', '+', '(' and ')' and needs at
// least ten digits.
func ValidPhone(s string) bool {
	if !phoneRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

// PatientForm is the raw patient-details input.
type PatientForm struct {
	Type   string `json:"type"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,clinic_email"`
	Phone  string `json:"phone" validate:"required,clinic_phone"`
	Age    string `json:"age" validate:"required,number"`
	Reason string `json:"reason"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clinic_email", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("clinic_phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return v
}

// ValidatePatient runs the patient-info gate. Missing fields are reported
// before a bad email, a bad email before a bad phone.
func ValidatePatient(form PatientForm) (Patient, error) {
	form.Type = strings.TrimSpace(form.Type)
	switch form.Type {
	case "", PatientGuest:
	case PatientRegistered:
		return Patient{}, errs.Unsupported(MsgLoginOrGuest)
	default:
		return Patient{}, errs.Validation(MsgPatientType).Arg("type", form.Type)
	}

	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)
	form.Age = strings.TrimSpace(form.Age)
	form.Reason = strings.TrimSpace(form.Reason)

	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Patient{}, errs.New("patient validation failed").Wrap(err)
		}
		return Patient{}, firstFailure(verrs)
	}

	age, err := strconv.Atoi(form.Age)
	if err != nil || age <= 0 || age > 150 {
		return Patient{}, errs.Validation(MsgInvalidAge).Arg("age", form.Age)
	}

	return Patient{
		Type:   PatientGuest,
		Name:   form.Name,
		Email:  form.Email,
		Phone:  form.Phone,
		Age:    age,
		Reason: form.Reason,
	}, nil
}

func firstFailure(verrs validator.ValidationErrors) error {
	failed := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return errs.Validation(MsgRequiredFields).Arg("field", strings.ToLower(fe.Field()))
		}
		failed[fe.Field()] = fe.Tag()
	}
	switch {
	case failed["Email"] != "":
		return errs.Validation(MsgInvalidEmail)
	case failed["Phone"] != "":
		return errs.Validation(MsgInvalidPhone)
	default:
		return errs.Validation(MsgInvalidAge)
	}
}
