// Package validation rejects malformed user actions before they enter the
// durable queue. A record that fails validation here never becomes a queue
// entry, so the sync engine only ever sees well-formed payloads.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/errors"
)

// ValidatePhoneNumber validates phone number format and length
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageContent validates a message body before enqueueing.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message content cannot be empty")
	}
	if !utf8.ValidString(content) {
		return errors.New(errors.ErrCodeInvalidInput, "message content is not valid UTF-8")
	}
	if len(content) > constants.MaxMessageLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message too long (max %d bytes)", constants.MaxMessageLength))
	}
	return nil
}

// ValidateID validates chat, user, and record identifiers.
func ValidateID(field, id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, field+" cannot be empty")
	}
	if len(id) > constants.MaxRecordIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", field, constants.MaxRecordIDLength))
	}
	for _, char := range id {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' || char == '/' {
			return errors.New(errors.ErrCodeInvalidInput, field+" contains invalid characters")
		}
	}
	return nil
}

// ValidateContactUpdates validates a partial contact patch. Only known fields
// may be patched, and an empty patch is rejected.
func ValidateContactUpdates(updates map[string]interface{}) error {
	if len(updates) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "contact update cannot be empty")
	}
	allowed := map[string]bool{
		"first_name": true,
		"last_name":  true,
		"phone":      true,
		"notes":      true,
	}
	for field := range updates {
		if !allowed[field] {
			return errors.New(errors.ErrCodeInvalidInput, "unknown contact field").
				WithContext("field", field)
		}
	}
	if phone, ok := updates["phone"].(string); ok {
		return ValidatePhoneNumber(phone)
	}
	return nil
}
