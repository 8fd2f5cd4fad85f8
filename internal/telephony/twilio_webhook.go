package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// TwilioStatusForm captures the call status callback fields we act on.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid        string
	AccountSid     string
	From           string
	To             string
	Direction      string
	CallStatus     string
	SequenceNumber string
	Timestamp      string

	// CallDuration is only present on the completed callback.
	CallDuration *int
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	f := TwilioStatusForm{
		CallSid:        strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:     strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:           normalizePhone(r.PostFormValue("From")),
		To:             normalizePhone(r.PostFormValue("To")),
		Direction:      r.PostFormValue("Direction"),
		CallStatus:     strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		SequenceNumber: r.PostFormValue("SequenceNumber"),
		Timestamp:      r.PostFormValue("Timestamp"),
	}
	if raw := strings.TrimSpace(r.PostFormValue("CallDuration")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.CallDuration = &n
		}
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
