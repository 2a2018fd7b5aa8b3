// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

// Package validation validates request bodies and configuration structs
// with go-playground/validator.
//
// Field names in messages use the struct's json tag, so errors read the
// same way the client wrote the payload:
//
//	type updateInsightRequest struct {
//	    Status string `json:"status" validate:"required,insight_status"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    rw.BadRequest(verr.Error())
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Providers is the set of integration providers Lucyn can connect.
var Providers = []string{"github", "slack", "discord"}

// InsightStatuses is the set of states an insight can be moved to.
var InsightStatuses = []string{"open", "read", "dismissed"}

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed rule of a struct.
type RequestValidationError struct {
	Fields []FieldError
}

// Error joins the individual messages.
func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator with Lucyn's custom rules.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "provider", oneOfFunc(Providers))
		mustRegister(v, "insight_status", oneOfFunc(InsightStatuses))
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func oneOfFunc(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// IsProvider reports whether name is a supported integration provider.
func IsProvider(name string) bool {
	return GetValidator().Var(name, "required,provider") == nil
}

// ValidateStruct validates s. It returns nil when s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: translate(fe)}
	}
	return out
}

var messages = map[string]string{
	"required":       "%s is required",
	"email":          "%s must be a valid email address",
	"url":            "%s must be a valid URL",
	"uuid":           "%s must be a valid UUID",
	"provider":       "%s must be one of: github, slack, discord",
	"insight_status": "%s must be one of: open, read, dismissed",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		msg := fmt.Sprintf(tmpl, fe.Field(), fe.Param())
		if fe.Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
			msg += " characters"
		}
		return msg
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
