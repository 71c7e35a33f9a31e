// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

// Package service implements the meeting service contract for both backends:
// the centralized adapter backed by NATS, and the peer-to-peer adapter backed
// by replicated documents.
package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
)

// Backend selects which adapter serves the meeting service contract.
type Backend string

const (
	BackendCentralized Backend = "centralized"
	BackendP2P         Backend = "p2p"
)

// IsValid reports whether the backend is a known adapter.
func (b Backend) IsValid() bool {
	return b == BackendCentralized || b == BackendP2P
}

// ServiceConfig holds the settings shared by both adapters.
type ServiceConfig struct {
	// Backend selects the active adapter.
	Backend Backend
}

var (
	nameCharsRegexp   = regexp.MustCompile(`^[a-zA-Z0-9\s\-']+$`)
	meetingCodeRegexp = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// validate is the shared validator for inbound payloads. Custom rules cover
// the character sets the built-in tags cannot express.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("name_chars", func(fl validator.FieldLevel) bool {
		return nameCharsRegexp.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("meeting_code", func(fl validator.FieldLevel) bool {
		return meetingCodeRegexp.MatchString(fl.Field().String())
	})
	return v
}

type createMeetingInput struct {
	Title           string `validate:"required,min=3,max=100"`
	FacilitatorName string `validate:"required,min=1,max=50,name_chars"`
}

type joinMeetingInput struct {
	Code string `validate:"required,meeting_code"`
	Name string `validate:"required,min=1,max=50,name_chars"`
}

type participantNameInput struct {
	Name string `validate:"required,min=1,max=50,name_chars"`
}

type meetingTitleInput struct {
	Title string `validate:"required,min=3,max=100"`
}

func validateStruct(message string, input any) error {
	if err := validate.Struct(input); err != nil {
		return domain.NewValidationError(message, err)
	}
	return nil
}
