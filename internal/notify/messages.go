package notify

import (
	"fmt"
	"time"
)

const interviewTimeLayout = "Mon Jan 2, 2006 at 3:04 PM MST"

func verificationMessage(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
}

func interviewMessage(in Interview) string {
	msg := fmt.Sprintf("Hi %s, your interview for %s is scheduled for %s.", in.CandidateName, in.JobTitle, in.At.Format(interviewTimeLayout))
	if in.Location != "" {
		msg += " Location: " + in.Location
	}
	return msg
}

func alertMessage(message string) string {
	return "[Alert] " + message
}

func testMessage(provider string, at time.Time) string {
	return fmt.Sprintf("Test message from %s at %s", provider, at.UTC().Format(time.RFC3339))
}
