package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{"valid international", "+2348012345678", false},
		{"valid without plus", "2348012345678", false},
		{"empty", "", true},
		{"too short", "+123", true},
		{"letters", "+23480abc5678", true},
		{"spaces", "+234 801 234", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhoneNumber(tt.phone)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   \n\t "))
	assert.Error(t, ValidateMessageContent(string([]byte{0xff, 0xfe})))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", 5000)))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("chat_id", "chat-123"))
	assert.Error(t, ValidateID("chat_id", ""))
	assert.Error(t, ValidateID("chat_id", "has/slash"))
	assert.Error(t, ValidateID("chat_id", "has\nnewline"))
	assert.Error(t, ValidateID("chat_id", strings.Repeat("x", 100)))
}

func TestValidateContactUpdates(t *testing.T) {
	assert.NoError(t, ValidateContactUpdates(map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Obi",
	}))
	assert.Error(t, ValidateContactUpdates(nil))
	assert.Error(t, ValidateContactUpdates(map[string]interface{}{}))
	assert.Error(t, ValidateContactUpdates(map[string]interface{}{"role": "admin"}))
	assert.Error(t, ValidateContactUpdates(map[string]interface{}{"phone": "bad"}))
	assert.NoError(t, ValidateContactUpdates(map[string]interface{}{"phone": "+2348012345678"}))
}
