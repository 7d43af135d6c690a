// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package validation wraps go-playground/validator v10 with a shared
// instance, the custom tags Dispatchlink needs and readable messages.
//
// Field names in messages come from the koanf tag path, so a failure on
// Config.Realtime.MaxDelay reads "realtime.max_delay ...".
//
// Custom tags:
//   - endpoint: absolute URL with an http, https, ws or wss scheme and a host
//   - loglevel: a zerolog level name
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed constraint.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   any
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Errors collects every failed constraint of one struct.
type Errors []FieldError

func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve))
	for i, e := range ve {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// Fields returns the failing field paths in order.
func (ve Errors) Fields() []string {
	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	return fields
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(koanfName)
		_ = validate.RegisterValidation("endpoint", validateEndpoint)
		_ = validate.RegisterValidation("loglevel", validateLogLevel)
	})
	return validate
}

// ValidateStruct validates s. The returned error is Errors when any
// constraint fails.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := make(Errors, len(validationErrs))
	for i, fe := range validationErrs {
		field := fieldPath(fe.Namespace())
		out[i] = FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe, field),
		}
	}
	return out
}

// koanfName uses the koanf tag as the field name, falling back to the Go
// name for untagged fields.
func koanfName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// fieldPath drops the root struct name from a namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validateEndpoint(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return true
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := zerolog.ParseLevel(strings.ToLower(fl.Field().String()))
	return err == nil
}

// errorMessageTemplates maps tags to templates taking the field name.
var errorMessageTemplates = map[string]string{
	"required":      "%s is required",
	"endpoint":      "%s must be an http(s) or ws(s) URL with a host",
	"loglevel":      "%s must be a log level (trace, debug, info, warn, error)",
	"hostname_port": "%s must be host:port",
}

// errorMessageWithParam maps tags to templates taking field and param.
var errorMessageWithParam = map[string]string{
	"oneof":    "%s must be one of: %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
	"gtfield":  "%s must be greater than %s",
	"gtefield": "%s must be greater than or equal to %s",
}

func translateError(fe validator.FieldError, field string) string {
	tag := fe.Tag()
	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, paramPath(fe, tag))
	}
	return translateMinMax(fe, field, tag, fe.Param())
}

// paramPath renders a sibling field parameter as its koanf path.
func paramPath(fe validator.FieldError, tag string) string {
	if !strings.HasSuffix(tag, "field") {
		return fe.Param()
	}
	parent, _, ok := strings.Cut(fieldPath(fe.Namespace()), ".")
	if !ok {
		return toSnake(fe.Param())
	}
	return parent + "." + toSnake(fe.Param())
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

// toSnake converts a Go field name like MaxDelay to max_delay.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
