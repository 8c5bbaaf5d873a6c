package schedule

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

var (
	ErrPollQuestion = errors.New("poll question is empty")
	ErrPollOptions  = fmt.Errorf("poll needs %d to %d options", constants.PollMinOptions, constants.PollMaxOptions)
)

// ValidatePoll checks a poll before it is handed to PollScheduleManager,
// which itself trusts its input.
func ValidatePoll(question string, options []string) error {
	if strings.TrimSpace(question) == "" {
		return ErrPollQuestion
	}
	if len(options) < constants.PollMinOptions || len(options) > constants.PollMaxOptions {
		return fmt.Errorf("%w, got %d", ErrPollOptions, len(options))
	}
	for i, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return fmt.Errorf("poll option %d is empty", i+1)
		}
		if utf8.RuneCountInString(opt) > constants.PollOptionMaxChars {
			return fmt.Errorf("poll option %d exceeds %d characters", i+1, constants.PollOptionMaxChars)
		}
	}
	return nil
}
