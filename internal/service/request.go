package service

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// Entry modes.
const (
	ModeManual = "manual"
	ModeAI     = "ai"
)

// EntryRequest is the body of a create-entry call.
// Manual mode requires non-blank Content; AI mode requires exactly one
// answer per question.
type EntryRequest struct {
	Mode    string   `json:"mode" validate:"required,oneof=manual ai"`
	UserID  string   `json:"user_id" validate:"required,userid"`
	Content string   `json:"content,omitempty"`
	Answers []string `json:"answers,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)
	_ = validate.RegisterValidation("notblank", notBlank)
	_ = validate.RegisterValidation("userid", validUserID)
	validate.RegisterStructValidation(validateEntryRequest, EntryRequest{})
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validUserID(fl validator.FieldLevel) bool {
	return models.UserIDProblem(fl.Field().String()) == ""
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validateEntryRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(EntryRequest)
	switch req.Mode {
	case ModeManual:
		if strings.TrimSpace(req.Content) == "" {
			sl.ReportError(req.Content, "content", "Content", "notblank", "")
		}
	case ModeAI:
		if len(req.Answers) != len(Questions) {
			sl.ReportError(req.Answers, "answers", "Answers", "len", strconv.Itoa(len(Questions)))
		}
	}
}

// Validate checks the request. Failures wrap models.ErrValidation.
func (r EntryRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s requires exactly %s answers", ModeAI, fe.Param())
	case "userid":
		return fe.Field() + " " + models.UserIDProblem(fmt.Sprint(fe.Value()))
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
