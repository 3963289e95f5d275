package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Users quote the code; support looks it up here.
//
// Typed errors are recognized first (NotFoundError, ConflictError,
// ErrTooManyImports); everything else is matched case-insensitively against
// errorPatterns, first match wins.
//
//	VAL001  Invalid value                 any other ValidationError
//	VAL002  Invalid number                "invalid assessment number"
//	VAL003  Required value missing        "is required"
//	VAL004  Missing columns               "missing required columns"
//	VAL005  Sheet not found               "sheet not found", "no header row"
//	VAL006  Value not allowed             "invalid enum"
//	VAL007  Field is read-only            "not editable"
//	NF001   Record not found              NotFoundError
//	CONF001 Edited concurrently           ConflictError
//	DB001   Duplicate natural key         "duplicate key", "unique constraint"
//	DB002   Referenced record missing     "foreign key"
//	DB004   Database unreachable          "connection refused", "no such host"
//	DB005   Connection interrupted        "connection reset", "broken pipe"
//	DB006   Operation timed out           "timeout"
//	DB007   Database busy                 "deadlock", "database is locked"
//	FILE001 File too large                "file too large", "request body too large"
//	FILE002 Not a workbook                "not a valid xlsx"
//	FILE003 No file                       "no file provided"
//	IMP001  Import queue full             ErrTooManyImports
//	IMP002  Request cancelled             "context canceled"
//	IMP003  Request timed out             "context deadline exceeded"
//	RATE001 Rate limited                  "rate limit"
//	ERR000  Unknown error                 fallback; check logs for the technical error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
	Detail  string // The specific problem, for validation errors
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: specific patterns precede general ones.
var errorPatterns = []errorPattern{
	// Validation
	{"missing required columns", UserMessage{
		Message: "The workbook is missing required columns",
		Action:  "Check the header row against the risk template",
		Code:    "VAL004",
	}},
	{"sheet not found", UserMessage{
		Message: "A required sheet was not found in the workbook",
		Action:  "Make sure both the risk and control sheets are present and named as in the template",
		Code:    "VAL005",
	}},
	{"no header row", UserMessage{
		Message: "A required sheet is empty",
		Action:  "Add the header row from the template",
		Code:    "VAL005",
	}},
	{"not a valid xlsx", UserMessage{
		Message: "The file is not an Excel workbook",
		Action:  "Upload the .xlsx file saved from the risk template",
		Code:    "FILE002",
	}},
	{"invalid assessment number", UserMessage{
		Message: "An assessment number is not a whole number",
		Action:  "Use whole numbers in the # column",
		Code:    "VAL002",
	}},
	{"invalid enum", UserMessage{
		Message: "A value is not in the allowed list",
		Action:  "Choose one of the listed values",
		Code:    "VAL006",
	}},
	{"not editable", UserMessage{
		Message: "This field cannot be changed",
		Action:  "Only post-mitigation ratings, review status and notes can be edited",
		Code:    "VAL007",
	}},
	{"is required", UserMessage{
		Message: "A required value is missing",
		Action:  "Fill in the required field and try again",
		Code:    "VAL003",
	}},

	// Database constraints
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Re-run the import; existing records are matched by name",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Re-run the import; existing records are matched by name",
		Code:    "DB001",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Import the workbook again so that assets exist before risk items",
		Code:    "DB002",
	}},

	// Database connectivity
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"no such host", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"broken pipe", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"database is locked", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Files
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Remove unused sheets or split the workbook",
		Code:    "FILE001",
	}},
	{"request body too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Remove unused sheets or split the workbook",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select an .xlsx workbook to import",
		Code:    "FILE003",
	}},

	// Requests
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP002",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try again, or import a smaller workbook",
		Code:    "IMP003",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var (
	notFoundMessage = UserMessage{
		Message: "The requested record does not exist",
		Action:  "Return to the risk register and pick an existing item",
		Code:    "NF001",
	}
	conflictMessage = UserMessage{
		Message: "Someone else changed this risk item while you were editing",
		Action:  "Reload the item, review the changes and save again",
		Code:    "CONF001",
	}
	busyMessage = UserMessage{
		Message: "Too many imports are running",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	validationMessage = UserMessage{
		Message: "Some input is invalid",
		Action:  "Correct the highlighted value and try again",
		Code:    "VAL001",
	}
	defaultMessage = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
)

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(&ConflictError{RiskID: 4})
//	// msg.Code == "CONF001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		nf *NotFoundError
		ce *ConflictError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &nf):
		msg := notFoundMessage
		msg.Detail = nf.Error()
		return msg
	case errors.As(err, &ce):
		return conflictMessage
	case errors.Is(err, ErrTooManyImports):
		return busyMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			msg := ep.msg
			if errors.As(err, &ve) {
				msg.Detail = strings.TrimPrefix(ve.Error(), "validation: ")
			}
			return msg
		}
	}

	if errors.As(err, &ve) {
		msg := validationMessage
		msg.Detail = strings.TrimPrefix(ve.Error(), "validation: ")
		return msg
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Detail != "" {
		return fmt.Sprintf("%s: %s (Code: %s). %s", msg.Message, msg.Detail, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
