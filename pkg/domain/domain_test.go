package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackName(t *testing.T) {
	assert.Equal(t, "user_42_by_plakbot", PackName(42, "plakbot"))
	assert.Equal(t, PackName(42, "plakbot"), PackName(42, "plakbot"))
	assert.NotEqual(t, PackName(42, "plakbot"), PackName(43, "plakbot"))
	assert.NotEqual(t, PackName(42, "plakbot"), PackName(42, "otherbot"))
}

func TestPackTitleAndLink(t *testing.T) {
	assert.Equal(t, "Ann's Personal Stickerpack", PackTitle("Ann"))
	assert.Equal(t, "https://t.me/addstickers/user_1_by_bot", PackLink("user_1_by_bot"))
}

func TestDescription(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api error", &APIError{Description: "Bad Request: STICKERSET_INVALID", Code: 400}, "Bad Request: STICKERSET_INVALID"},
		{"wrapped api error", fmt.Errorf("adding: %w", &APIError{Description: "Too Many Requests", Code: 429}), "Too Many Requests"},
		{"transport error", &TransportError{Op: "getFile", Err: errors.New("connection refused")}, "connection refused"},
		{"plain error", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Description(tt.err))
		})
	}
}

func TestUserFacingErrorUnwraps(t *testing.T) {
	cause := &ConversionError{Kind: ConversionUnconvertible, Message: "broken input"}
	err := error(NewUserFacingError("This sticker cannot be converted: broken input", cause))

	var convErr *ConversionError
	assert.True(t, errors.As(err, &convErr))
	assert.Equal(t, ConversionUnconvertible, convErr.Kind)
	assert.Equal(t, "conversion unconvertible: broken input", err.Error())

	assert.Equal(t, "reply only", NewUserFacingError("reply only", nil).Error())
}
