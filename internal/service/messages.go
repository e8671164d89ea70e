package service

import (
	"fmt"
)

const (
	subjectReviewEdited   = "Your review was edited"
	subjectReviewDeleted  = "Your review was removed"
	subjectAppealResolved = "Your appeal has been reviewed"
)

func reviewEditedMessage(bookTitle, moderator string) string {
	return fmt.Sprintf("Your review of %q was edited by %s.", bookTitle, moderator)
}

func reviewDeletedMessage(bookTitle, moderator, reason string) string {
	return fmt.Sprintf("Your review of %q was removed by %s. Reason: %s", bookTitle, moderator, reason)
}

func appealResolvedMessage(status, response string) string {
	msg := fmt.Sprintf("Your appeal has been %s.", status)
	if response != "" {
		msg += " Response: " + response
	}
	return msg
}
